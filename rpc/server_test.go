package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"habitledger/core"
	"habitledger/core/events"
	"habitledger/gateway/middleware"
	"habitledger/native/habits"
	"habitledger/storage"
)

const (
	testToday  int64 = 1_700_006_400
	testSecret       = "rpc-test-secret"
)

type fixture struct {
	t      *testing.T
	server *Server
	hub    *events.Hub
	now    *int64
	auth   middleware.AuthConfig
	owner  [20]byte
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := testToday + 60
	hub := events.NewHub(16)
	ledger, err := core.NewLedger(storage.NewMemDB(),
		core.WithEmitter(hub),
		core.WithNowFunc(func() int64 { return now }),
	)
	require.NoError(t, err)
	owner := addr(0xAA)
	require.NoError(t, ledger.Init(context.Background(), owner))

	authCfg := middleware.AuthConfig{HMACSecret: testSecret, Issuer: "habitsd", Audience: "habits-api"}
	server, err := NewServer(Config{
		Ledger: ledger,
		Hub:    hub,
		Auth:   middleware.NewAuthenticator(authCfg, nil),
	})
	require.NoError(t, err)
	return &fixture{t: t, server: server, hub: hub, now: &now, auth: authCfg, owner: owner}
}

func (f *fixture) token(caller [20]byte) string {
	token, err := middleware.IssueToken(f.auth, caller, time.Hour)
	require.NoError(f.t, err)
	return token
}

func (f *fixture) do(method, path string, caller *[20]byte, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+f.token(*caller))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func batchAmount() string {
	return habits.DefaultParams().BatchDeposit().String()
}

func TestServerParticipantLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	start := testToday + habits.DayLength

	rec := f.do(http.MethodGet, "/v1/start-date", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, start, decode[StartDateResult](t, rec).StartDate)

	rec = f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start, Amount: batchAmount()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[RegistrationResult](t, rec)
	require.Len(t, reg.Dates, habits.DefaultBatchSize)
	require.Equal(t, start+9*habits.DayLength, reg.EndDate)

	*f.now = start + 60
	rec = f.do(http.MethodPost, "/v1/checkin", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, start, decode[CheckInResult](t, rec).Date)

	*f.now = start + 2*habits.DayLength
	rec = f.do(http.MethodGet, "/v1/withdrawable", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	withdrawable := decode[WithdrawableResult](t, rec)
	require.Equal(t, []int64{start}, withdrawable.Dates)
	require.Equal(t, habits.DefaultPerDayFee.String(), withdrawable.Amount)

	rec = f.do(http.MethodPost, "/v1/withdraw", &alice, DatesRequest{Dates: []int64{start}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, habits.DefaultPerDayFee.String(), decode[SettlementResult](t, rec).Amount)

	rec = f.do(http.MethodGet, "/v1/entries", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]EntryResult](t, rec)
	require.Len(t, entries, habits.DefaultBatchSize)
	require.Equal(t, "withdrawn", entries[0].Status)
	require.Equal(t, "registered", entries[1].Status)

	rec = f.do(http.MethodGet, "/v1/vault", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	vault := decode[VaultResult](t, rec)
	require.Equal(t, batchAmount(), vault.Deposited)
	require.Equal(t, habits.DefaultPerDayFee.String(), vault.Released)
}

func TestServerRejectsInvalidRegistration(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	start := testToday + habits.DayLength

	rec := f.do(http.MethodPost, "/v1/register", nil, RegisterRequest{StartDate: start, Amount: batchAmount()})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start, Amount: "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, decode[errorResponse](t, rec).Error.Code)

	rec = f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start + habits.DayLength, Amount: batchAmount()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[errorResponse](t, rec).Error.Message, "start date")

	rec = f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start, Amount: "abc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/v1/checkin", &alice, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServerRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	req := httptest.NewRequest(http.MethodPost, "/v1/withdraw", strings.NewReader(`{"dates":[],"extra":1}`))
	req.Header.Set("Authorization", "Bearer "+f.token(alice))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidRequest, decode[errorResponse](t, rec).Error.Code)
}

func TestServerAdminEndpoints(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	bob := addr(0x02)
	start := testToday + habits.DayLength

	rec := f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start, Amount: batchAmount()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/v1/admin/admins", &alice, AdminRequest{Address: formatAddress(bob)})
	require.Equal(t, http.StatusForbidden, rec.Code)

	path := fmt.Sprintf("/v1/admin/contests/%d", start)
	rec = f.do(http.MethodGet, path, &bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(0), decode[ContestStatusAdminResult](t, rec).Registered)

	owner := f.owner
	rec = f.do(http.MethodPost, "/v1/admin/admins", &owner, AdminRequest{Address: formatAddress(bob)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, decode[AdminResult](t, rec).Admin)

	rec = f.do(http.MethodGet, path, &bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(1), decode[ContestStatusAdminResult](t, rec).Registered)

	rec = f.do(http.MethodGet, path+"/users", &bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{formatAddress(alice)}, decode[UsersResult](t, rec).Users)

	rec = f.do(http.MethodGet, "/v1/admin/users/"+formatAddress(alice)+"/dates", &bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[UserDatesResult](t, rec).Dates, habits.DefaultBatchSize)

	rec = f.do(http.MethodGet, fmt.Sprintf("/v1/admin/entries/%s/%d", formatAddress(alice), start), &bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "registered", decode[EntryStatusResult](t, rec).Status)

	rec = f.do(http.MethodDelete, "/v1/admin/admins/"+formatAddress(bob), &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[AdminResult](t, rec).Admin)

	rec = f.do(http.MethodGet, "/v1/admin/users/not-an-address/dates", &owner, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerOperationFeeSweep(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	start := testToday + habits.DayLength

	rec := f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start, Amount: batchAmount()})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Nobody checks in, so the whole first-day deposit becomes an operation fee.
	*f.now = start + 2*habits.DayLength
	owner := f.owner
	rec = f.do(http.MethodGet, "/v1/admin/fees", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fees := decode[WithdrawableResult](t, rec)
	require.Equal(t, []int64{start}, fees.Dates)
	require.Equal(t, habits.DefaultPerDayFee.String(), fees.Amount)

	rec = f.do(http.MethodPost, "/v1/admin/fees/withdraw", &owner, FeeWithdrawRequest{All: true, Dates: []int64{start}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/v1/admin/fees/withdraw", &alice, FeeWithdrawRequest{All: true})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/v1/admin/fees/withdraw", &owner, FeeWithdrawRequest{All: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, habits.DefaultPerDayFee.String(), decode[SettlementResult](t, rec).Amount)

	rec = f.do(http.MethodPost, "/v1/admin/fees/withdraw", &owner, FeeWithdrawRequest{Dates: []int64{start}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", decode[SettlementResult](t, rec).Amount)
}

func TestServerPublicContestStatus(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	start := testToday + habits.DayLength
	rec := f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start, Amount: batchAmount()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, fmt.Sprintf("/v1/contests/%d", start), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[ContestStatusResult](t, rec)
	require.Equal(t, int64(1), status.Registered)
	require.Equal(t, int64(-1), status.Completed)
	require.Equal(t, "-1", status.Bonus)

	rec = f.do(http.MethodGet, "/v1/contests/tomorrow", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerHealthAndRequestID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(headerRequestID))

	req := httptest.NewRequest(http.MethodGet, "/v1/params", nil)
	req.Header.Set(headerRequestID, "fixed-id")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "fixed-id", rec.Header().Get(headerRequestID))
	params := decode[ParamsResult](t, rec)
	require.Equal(t, habits.DefaultBatchSize, params.BatchSize)
	require.Equal(t, batchAmount(), params.BatchDeposit)
}

func TestServerRequiresLedgerAndAuth(t *testing.T) {
	_, err := NewServer(Config{})
	require.Error(t, err)
	ledger, err := core.NewLedger(storage.NewMemDB())
	require.NoError(t, err)
	_, err = NewServer(Config{Ledger: ledger})
	require.Error(t, err)
}

func TestServerEventStream(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	start := testToday + habits.DayLength
	rec := f.do(http.MethodPost, "/v1/register", &alice, RegisterRequest{StartDate: start, Amount: batchAmount()})
	require.Equal(t, http.StatusCreated, rec.Code)

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.token(alice))
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/events/ws", &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var update events.Update
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, events.TypeHabitsRegistered, update.Event.Type)
	require.Equal(t, "1", update.Cursor)
}

func (f *fixture) dialEvents(ctx context.Context, srv *httptest.Server, caller [20]byte) *websocket.Conn {
	f.t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.token(caller))
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/events/ws", &websocket.DialOptions{HTTPHeader: header})
	require.NoError(f.t, err)
	return conn
}

func readUpdate(ctx context.Context, t *testing.T, conn *websocket.Conn) events.Update {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var update events.Update
	require.NoError(t, json.Unmarshal(data, &update))
	return update
}

func TestServerEventStreamScopesParticipants(t *testing.T) {
	f := newFixture(t)
	alice, carol := addr(0x01), addr(0x03)
	start := testToday + habits.DayLength
	for _, user := range [][20]byte{alice, carol} {
		user := user
		rec := f.do(http.MethodPost, "/v1/register", &user, RegisterRequest{StartDate: start, Amount: batchAmount()})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	*f.now = start + 10
	rec := f.do(http.MethodPost, "/v1/checkin", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	carolConn := f.dialEvents(ctx, srv, carol)
	defer carolConn.Close(websocket.StatusNormalClosure, "done")

	update := readUpdate(ctx, t, carolConn)
	require.Equal(t, events.TypeHabitsRegistered, update.Event.Type)
	require.Equal(t, formatAddress(carol), update.Event.Attributes["user"])
	require.Equal(t, "2", update.Cursor)

	// Carol's own check-in is the next thing she sees; alice's is skipped.
	rec = f.do(http.MethodPost, "/v1/checkin", &carol, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	update = readUpdate(ctx, t, carolConn)
	require.Equal(t, events.TypeHabitsCheckedIn, update.Event.Type)
	require.Equal(t, formatAddress(carol), update.Event.Attributes["user"])
	require.Equal(t, "4", update.Cursor)

	ownerConn := f.dialEvents(ctx, srv, f.owner)
	defer ownerConn.Close(websocket.StatusNormalClosure, "done")
	var seen []string
	for i := 0; i < 4; i++ {
		update := readUpdate(ctx, t, ownerConn)
		seen = append(seen, update.Event.Type+":"+update.Event.Attributes["user"])
	}
	require.Contains(t, seen, events.TypeHabitsCheckedIn+":"+formatAddress(alice))
}

type stubSweeper struct {
	last  *habits.Settlement
	at    time.Time
	total *big.Int
}

func (s stubSweeper) Status() (*habits.Settlement, time.Time, *big.Int) {
	return s.last, s.at, new(big.Int).Set(s.total)
}

func TestServerSweeperStatus(t *testing.T) {
	f := newFixture(t)
	bob := addr(0x02)

	rec := f.do(http.MethodGet, "/v1/admin/sweeper", &bob, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/v1/admin/sweeper", &f.owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	idle := decode[SweeperResult](t, rec)
	require.False(t, idle.Enabled)
	require.Equal(t, "0", idle.TotalSwept)

	ran := time.Unix(testToday+120, 0)
	server, err := NewServer(Config{
		Ledger: f.server.ledger,
		Auth:   middleware.NewAuthenticator(f.auth, nil),
		Sweeper: stubSweeper{
			last:  &habits.Settlement{Dates: []int64{testToday - 2*habits.DayLength}, Amount: big.NewInt(7)},
			at:    ran,
			total: big.NewInt(21),
		},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/sweeper", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(f.owner))
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[SweeperResult](t, rec)
	require.True(t, status.Enabled)
	require.Equal(t, ran.Unix(), status.LastRunAt)
	require.Equal(t, []int64{testToday - 2*habits.DayLength}, status.LastDates)
	require.Equal(t, "7", status.LastAmount)
	require.Equal(t, "21", status.TotalSwept)
}
