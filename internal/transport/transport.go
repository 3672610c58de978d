// Package transport defines the boundary with the external chat
// transport: the inbound events the core consumes and the outbound
// actions it produces. How a message physically reaches a member is the
// adapter's business; the core only addresses members by numeric ID.
package transport

import "context"

// PayloadKind classifies a free-form message payload.
type PayloadKind string

const (
	KindText     PayloadKind = "text"
	KindPhoto    PayloadKind = "photo"
	KindDocument PayloadKind = "document"
)

// EventType discriminates inbound event frames.
type EventType string

const (
	// EventCommand is a slash command such as /start or /stats.
	EventCommand EventType = "command"
	// EventButton is an inline-keyboard button press. Operator decisions
	// arrive as button presses whose action embeds the target member ID.
	EventButton EventType = "button"
	// EventMessage is a free-form message (text, photo, or document).
	EventMessage EventType = "message"
)

// Event is one inbound occurrence from the chat transport. Fields beyond
// Type and SenderID are populated per event type.
type Event struct {
	Type     EventType `json:"type"`
	SenderID int64     `json:"sender_id"`
	Username string    `json:"username,omitempty"`

	// Command fields.
	Command string `json:"command,omitempty"`
	Args    string `json:"args,omitempty"`
	// ReplyToSenderID carries the identity of the member a command replies
	// to, for operator commands issued as a reply.
	ReplyToSenderID int64 `json:"reply_to_sender_id,omitempty"`

	// Button fields.
	Action string `json:"action,omitempty"`

	// Message fields.
	Kind     PayloadKind `json:"kind,omitempty"`
	Text     string      `json:"text,omitempty"`
	MediaRef string      `json:"media_ref,omitempty"`
}

// Proof is a payment-proof payload forwarded verbatim to the operator
// channel.
type Proof struct {
	Kind     PayloadKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	MediaRef string      `json:"media_ref,omitempty"`
}

// Empty reports whether the proof carries no content at all.
func (p Proof) Empty() bool {
	return p.Text == "" && p.MediaRef == ""
}

// Button is one inline-keyboard button on an outbound message. Action and
// URL are mutually exclusive.
type Button struct {
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Sender is the outbound half of the transport boundary. Implementations
// deliver best-effort: a failed delivery is reported, never retried here.
type Sender interface {
	// SendText delivers a text message, optionally with an inline keyboard.
	SendText(ctx context.Context, recipientID int64, text string, keyboard [][]Button) error

	// SendAlbum delivers a group of photos with a caption on the first.
	SendAlbum(ctx context.Context, recipientID int64, photos []string, caption string) error

	// ForwardProof copies a submitted proof payload to the operator channel
	// with a caption and decision keyboard attached.
	ForwardProof(ctx context.Context, operatorChatID int64, proof Proof, caption string, keyboard [][]Button) error
}
