package hub

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// Event names on the wire.
const (
	// EventRosterChanged is sent to every client whenever the set of live
	// connections changes. Payload: unordered array of connection ids.
	EventRosterChanged = "roster-changed"

	// EventChatRelayed is sent to every client when a chat message is
	// relayed. Payload: ChatRelayed.
	EventChatRelayed = "chat-relayed"

	// EventChatMessage is the inbound chat event. Payload: ChatMessage.
	EventChatMessage = "chat-message"
)

// PlaceholderMessage replaces an absent or empty inbound chat message.
const PlaceholderMessage = "no-message"

// Envelope frames every event on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is the inbound chat payload. Message may be absent.
type ChatMessage struct {
	Message string `json:"message"`
}

// ChatRelayed is the outbound chat payload.
type ChatRelayed struct {
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

func marshalEvent(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// NewConnectionID returns a fresh opaque connection id: 16 random bytes,
// base58-encoded. Ids are generated once per physical connection and never
// reused.
func NewConnectionID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("connection id entropy: %v", err))
	}
	return base58.Encode(buf[:])
}
