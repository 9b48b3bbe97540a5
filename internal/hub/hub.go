// Package hub implements the relay's live-session registry and broadcast
// dispatcher. The registry maps opaque connection ids to admitted sessions
// and enforces one live session per identity; a single dispatcher goroutine
// sequences every outbound event so all clients observe the same order.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrRegistryInconsistency reports an admission that found the registry in a
// state the admission algorithm should have made unreachable (for example a
// duplicate connection id). It is logged and contained; it never reaches a
// client.
var ErrRegistryInconsistency = errors.New("registry inconsistency")

// ErrNotRegistered is returned when a lookup names a connection id that is
// not (or no longer) in the registry.
var ErrNotRegistered = errors.New("connection not registered")

type eventKind int

const (
	rosterEvent eventKind = iota
	chatEvent
)

// event is one entry in the dispatch queue. Roster events carry no payload:
// membership is snapshotted when the event is dispatched, so a redundant
// snapshot is the worst a race can produce. Chat events carry the sender's
// connection id; the display name is resolved at emission time.
type event struct {
	kind    eventKind
	sender  string
	message string
}

// Hub owns the session registry and the dispatch queue. Registry mutations
// go through the mutex; outbound ordering goes through the single Run
// goroutine draining events.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Client

	events chan event
}

// NewHub creates a hub with an empty registry.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Client),
		events:   make(chan event, 256),
	}
}

// Run drains the dispatch queue until the context is cancelled, then closes
// every remaining session. Run should be called in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case ev := <-h.events:
			h.dispatch(ev)

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.sessions {
				client.shutdown()
				delete(h.sessions, id)
			}
			h.mu.Unlock()
			slog.Info("hub stopped")
			return
		}
	}
}

// Admit registers a new session, first force-closing any live session held
// by the same identity (most-recent-login-wins). The scan-evict-insert runs
// as one critical section so no interleaving of concurrent handshakes can
// leave two sessions for one identity; the physical close of the evicted
// transport happens after the lock is released and feeds back through the
// idempotent Remove path.
func (h *Hub) Admit(client *Client) error {
	var evicted *Client

	h.mu.Lock()
	if _, ok := h.sessions[client.id]; ok {
		h.mu.Unlock()
		return ErrRegistryInconsistency
	}
	for id, existing := range h.sessions {
		if existing.identity.ID == client.identity.ID {
			evicted = existing
			delete(h.sessions, id)
			break
		}
	}
	h.sessions[client.id] = client
	h.mu.Unlock()

	if evicted != nil {
		slog.Info("session evicted",
			"identity", evicted.identity.ID,
			"evicted", evicted.id,
			"superseded_by", client.id,
		)
		evicted.evict()
	}
	slog.Info("session admitted",
		"connection", client.id,
		"identity", client.identity.ID,
		"connections", h.Count(),
	)

	h.events <- event{kind: rosterEvent}
	return nil
}

// Remove deletes the session for the given connection id. Calling it for an
// id that is absent (a disconnect racing an eviction) is a no-op, and no
// roster event is queued for the no-op case.
func (h *Hub) Remove(connectionID string) {
	h.mu.Lock()
	_, ok := h.sessions[connectionID]
	if ok {
		delete(h.sessions, connectionID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	slog.Info("session removed", "connection", connectionID, "connections", h.Count())
	h.events <- event{kind: rosterEvent}
}

// Relay queues a chat event from the given sender for broadcast. An empty
// message is replaced with a fixed placeholder rather than dropped.
func (h *Hub) Relay(senderID, message string) {
	if message == "" {
		message = PlaceholderMessage
	}
	h.events <- event{kind: chatEvent, sender: senderID, message: message}
}

// Roster returns a snapshot of the current connection ids, in no particular
// order.
func (h *Hub) Roster() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

// DisplayName resolves the display name for a live connection id, or returns
// ErrNotRegistered if the connection is gone.
func (h *Hub) DisplayName(connectionID string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.sessions[connectionID]
	if !ok {
		return "", ErrNotRegistered
	}
	return client.identity.FullName, nil
}

// Count returns the number of live sessions. It is safe for concurrent use.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// dispatch marshals one event and fans it out. Errors here are contained: a
// lookup miss or marshal failure drops the single event and the loop keeps
// going.
func (h *Hub) dispatch(ev event) {
	var (
		data []byte
		err  error
	)

	switch ev.kind {
	case rosterEvent:
		data, err = marshalEvent(EventRosterChanged, h.Roster())

	case chatEvent:
		name, nameErr := h.DisplayName(ev.sender)
		if nameErr != nil {
			// The sender disconnected between receipt and dispatch.
			slog.Warn("dropping chat relay", "connection", ev.sender, "error", nameErr)
			return
		}
		data, err = marshalEvent(EventChatRelayed, ChatRelayed{
			DisplayName: name,
			Message:     ev.message,
		})
	}
	if err != nil {
		slog.Error("event marshal failed", "error", err)
		return
	}

	h.fanout(data)
}

// fanout delivers one marshaled frame to every live client. The recipient
// set is snapshotted under the read lock, then writes proceed without it; a
// client with a full send buffer loses this frame only.
func (h *Hub) fanout(data []byte) {
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.sessions))
	for _, client := range h.sessions {
		recipients = append(recipients, client)
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		if !client.enqueue(data) {
			slog.Warn("send buffer full, dropping frame", "connection", client.id)
		}
	}
}
