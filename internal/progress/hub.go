package progress

import (
	"context"
	"sync"
)

// Hub wraps a Store and pushes a fresh snapshot to the run's subscribers
// after every successful write. A slow subscriber loses its oldest queued
// snapshots, never the newest, so it always sees the terminal state.
type Hub struct {
	Store

	mu   sync.Mutex
	subs map[string]map[chan *Snapshot]struct{}
}

// NewHub wraps s.
func NewHub(s Store) *Hub {
	return &Hub{Store: s, subs: make(map[string]map[chan *Snapshot]struct{})}
}

// Subscribe returns a channel of snapshots for runID and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe(runID string) (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 8)
	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan *Snapshot]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[runID], ch)
			if len(h.subs[runID]) == 0 {
				delete(h.subs, runID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) publish(ctx context.Context, runID string) {
	h.mu.Lock()
	n := len(h.subs[runID])
	h.mu.Unlock()
	if n == 0 {
		return
	}
	snap, err := h.Store.Get(ctx, runID)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[runID] {
		offer(ch, snap)
	}
}

// offer queues snap, evicting the oldest entry while ch is full. Only
// publish sends, under h.mu, so the loop ends once a slot frees up.
func offer(ch chan *Snapshot, snap *Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (h *Hub) Initialize(ctx context.Context, in Init) (*Record, error) {
	r, err := h.Store.Initialize(ctx, in)
	if err == nil {
		h.publish(ctx, in.RunID)
	}
	return r, err
}

func (h *Hub) Update(ctx context.Context, runID string, u Update) error {
	err := h.Store.Update(ctx, runID, u)
	if err == nil {
		h.publish(ctx, runID)
	}
	return err
}

func (h *Hub) Complete(ctx context.Context, runID string) error {
	err := h.Store.Complete(ctx, runID)
	if err == nil {
		h.publish(ctx, runID)
	}
	return err
}

func (h *Hub) Fail(ctx context.Context, runID, reason, message string) error {
	err := h.Store.Fail(ctx, runID, reason, message)
	if err == nil {
		h.publish(ctx, runID)
	}
	return err
}
