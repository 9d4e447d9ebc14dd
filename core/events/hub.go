package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"habitledger/core/types"
)

const defaultHubHistoryLimit = 1024

// Update is a sequenced notification delivered to stream subscribers.
type Update struct {
	Sequence uint64       `json:"sequence"`
	Cursor   string       `json:"cursor"`
	Event    *types.Event `json:"event"`
}

func cloneUpdate(update Update) Update {
	cloned := update
	cloned.Event = update.Event.Clone()
	return cloned
}

// Hub retains a bounded history of committed notifications and fans them out
// to live subscribers. Slow subscribers drop updates rather than block the
// ledger.
type Hub struct {
	mu      sync.Mutex
	limit   int
	seq     uint64
	nextID  uint64
	history []Update
	subs    map[uint64]chan Update
}

// NewHub constructs a hub retaining at most limit updates.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = defaultHubHistoryLimit
	}
	return &Hub{limit: limit, subs: make(map[uint64]chan Update)}
}

// Emit implements the Emitter interface.
func (h *Hub) Emit(evt Event) {
	if h == nil || evt == nil {
		return
	}
	payload := ToPayload(evt)

	h.mu.Lock()
	h.seq++
	update := Update{Sequence: h.seq, Cursor: strconv.FormatUint(h.seq, 10), Event: payload}
	h.history = append(h.history, cloneUpdate(update))
	if len(h.history) > h.limit {
		excess := len(h.history) - h.limit
		trimmed := make([]Update, h.limit)
		copy(trimmed, h.history[excess:])
		h.history = trimmed
	}
	// Sends happen under the lock so cancel cannot close a channel mid-send.
	for _, ch := range h.subs {
		select {
		case ch <- cloneUpdate(update):
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe registers a subscriber for updates after the supplied cursor. The
// returned backlog holds retained updates newer than the cursor.
func (h *Hub) Subscribe(ctx context.Context, cursor string) (<-chan Update, func(), []Update, error) {
	if h == nil {
		return nil, nil, nil, fmt.Errorf("event hub not initialised")
	}
	updates := make(chan Update, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		since = parsed
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = updates
	backlog := make([]Update, 0, len(h.history))
	for _, update := range h.history {
		if update.Sequence > since {
			backlog = append(backlog, cloneUpdate(update))
		}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(updates)
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog, nil
}
