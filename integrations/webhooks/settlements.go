package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"habitledger/core/events"
)

// EventType represents the logical webhook topic.
type EventType string

const (
	// EventWithdrawn is delivered when a participant withdrawal releases funds.
	EventWithdrawn EventType = "habits.withdrawn"
	// EventOperationFeesWithdrawn is delivered when an operator sweep releases fees.
	EventOperationFeesWithdrawn EventType = "habits.operation_fees_withdrawn"

	headerEvent     = "X-Habits-Event"
	headerSignature = "X-Habits-Signature"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// SettlementPayload is the webhook body for both settlement topics.
type SettlementPayload struct {
	Type       EventType `json:"type"`
	Recipient  string    `json:"recipient"`
	Dates      []int64   `json:"dates"`
	Amount     string    `json:"amount"`
	SettledAt  time.Time `json:"settledAt"`
	DeliveryID string    `json:"deliveryId"`
}

// Dispatcher delivers settlement notifications with retry and exponential
// backoff. It implements events.Emitter so it can sit behind the ledger.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	nowFn       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	eventType EventType
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithLogger sets the logger used to report dropped or failed deliveries.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = string(bytes.TrimSpace([]byte(endpoint)))
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		nowFn:       time.Now,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 32),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	dispatcher.wg.Add(1)
	go dispatcher.worker()
	return dispatcher, nil
}

// Close stops the dispatcher and waits for inflight deliveries to complete.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.cancel()
	d.wg.Wait()
	return nil
}

// Emit implements events.Emitter. Only settlements that released a positive
// amount are delivered. A full queue drops the notification so the ledger is
// never blocked by a slow endpoint.
func (d *Dispatcher) Emit(evt events.Event) {
	if d == nil {
		return
	}
	var payload SettlementPayload
	switch e := evt.(type) {
	case events.HabitsWithdrawn:
		if !positive(e.Amount) {
			return
		}
		payload = SettlementPayload{Type: EventWithdrawn, Recipient: hexAddress(e.User), Dates: e.Dates, Amount: e.Amount.String()}
	case events.HabitsOperationFeesWithdrawn:
		if !positive(e.Amount) {
			return
		}
		payload = SettlementPayload{Type: EventOperationFeesWithdrawn, Recipient: hexAddress(e.Operator), Dates: e.Dates, Amount: e.Amount.String()}
	default:
		return
	}
	job, err := d.prepare(payload)
	if err != nil {
		d.logger.Error("webhook: encode failed", slog.Any("error", err))
		return
	}
	select {
	case d.queue <- job:
	case <-d.ctx.Done():
	default:
		d.logger.Warn("webhook: queue full, dropping delivery",
			slog.String("event", string(payload.Type)),
			slog.String("delivery_id", payload.DeliveryID))
	}
}

// Enqueue sends a settlement asynchronously, waiting for queue capacity.
func (d *Dispatcher) Enqueue(payload SettlementPayload) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	job, err := d.prepare(payload)
	if err != nil {
		return err
	}
	select {
	case d.queue <- job:
		return nil
	case <-d.ctx.Done():
		return errors.New("webhook: dispatcher closed")
	}
}

func (d *Dispatcher) prepare(payload SettlementPayload) (delivery, error) {
	if payload.Type == "" {
		payload.Type = EventWithdrawn
	}
	if payload.SettledAt.IsZero() {
		payload.SettledAt = d.nowFn().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	if payload.Dates == nil {
		payload.Dates = []int64{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return delivery{}, err
	}
	return delivery{eventType: payload.Type, body: data}, nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Error("webhook: delivery abandoned",
				slog.String("event", string(job.eventType)),
				slog.Int("attempts", attempt),
				slog.Any("error", err))
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, string(job.eventType))
	req.Header.Set(headerSignature, Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value receivers use to verify body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	if next < current {
		return max
	}
	return next
}

func positive(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

func hexAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}
