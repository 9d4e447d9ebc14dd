package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"nhooyr.io/websocket"

	"habitledger/core/events"
	"habitledger/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// subjectAttributes name the event attributes that identify the account an
// event is about.
var subjectAttributes = []string{"user", "operator", "admin"}

// eventFilter decides which committed events a subscriber may observe.
type eventFilter func(evt *types.Event) bool

func allEvents(*types.Event) bool { return true }

// ownEvents admits only events about subject. Other participants' check-ins
// would otherwise expose completion counts before a date matures.
func ownEvents(subject [20]byte) eventFilter {
	hex := common.BytesToAddress(subject[:]).Hex()
	return func(evt *types.Event) bool {
		if evt == nil {
			return false
		}
		for _, key := range subjectAttributes {
			if value, ok := evt.Attributes[key]; ok && strings.EqualFold(value, hex) {
				return true
			}
		}
		return false
	}
}

// streamFilter resolves the subscriber's view once at connect time.
func (s *Server) streamFilter(r *http.Request, caller [20]byte) (eventFilter, error) {
	admin, err := s.ledger.IsAdmin(r.Context(), caller)
	if err != nil {
		return nil, err
	}
	if admin {
		return allEvents, nil
	}
	return ownEvents(caller), nil
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "event stream unavailable", nil)
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	filter, err := s.streamFilter(r, caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	updates, cancel, backlog, err := s.hub.Subscribe(r.Context(), cursor)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
		return
	}
	defer cancel()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cors.AllowedOrigins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := streamUpdates(conn.CloseRead(r.Context()), conn, filter, backlog, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamUpdates(ctx context.Context, conn *websocket.Conn, filter eventFilter, backlog []events.Update, updates <-chan events.Update) error {
	for _, update := range backlog {
		if !filter(update.Event) {
			continue
		}
		if err := writeUpdate(ctx, conn, update); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter(update.Event) {
				continue
			}
			if err := writeUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeUpdate(ctx context.Context, conn *websocket.Conn, update events.Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
