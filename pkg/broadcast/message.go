package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// MessageType tags a leadership message
type MessageType string

const (
	// TypeTabAnnounce tells existing tabs that a new tab has appeared
	TypeTabAnnounce MessageType = "tab-announce"
	// TypeLeadershipClaim tells every other tab to become inactive
	TypeLeadershipClaim MessageType = "leadership-claim"
)

// ErrClosed is returned when posting on a closed channel
var ErrClosed = errors.New("broadcast channel is closed")

// Message is the wire format shared by all tabs
type Message struct {
	Type  MessageType `json:"type"`
	TabID string      `json:"tabId"`
}

// Channel is one member's handle on a named broadcast channel
type Channel interface {
	// Post sends msg to every member, this one included
	Post(ctx context.Context, msg Message) error
	// Messages delivers inbound messages; it is closed after Close
	Messages() <-chan Message
	Close() error
}

// MessageSchema is the JSON schema every inbound frame must satisfy
const MessageSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "tabId"],
	"properties": {
		"type": {"type": "string", "enum": ["tab-announce", "leadership-claim"]},
		"tabId": {"type": "string", "minLength": 1, "maxLength": 128}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(MessageSchema)

// Validate parses data as a Message after checking it against MessageSchema
func Validate(data []byte) (Message, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Message{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return Message{}, fmt.Errorf("invalid broadcast message: %s", strings.Join(errs, "; "))
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode broadcast message: %w", err)
	}
	return msg, nil
}

// Check validates an outbound message without a JSON round trip
func (m Message) Check() error {
	if m.Type != TypeTabAnnounce && m.Type != TypeLeadershipClaim {
		return fmt.Errorf("unknown message type: %q", m.Type)
	}
	if m.TabID == "" {
		return fmt.Errorf("message tabId cannot be empty")
	}
	if len(m.TabID) > 128 {
		return fmt.Errorf("message tabId too long")
	}
	return nil
}
