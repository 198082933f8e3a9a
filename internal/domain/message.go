package domain

import "fmt"

// SystemSender is the reserved announcement sender. It can never be claimed
// as a nickname.
const SystemSender = "📢"

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindMedia MessageKind = "media"
	KindJoin  MessageKind = "join"
	KindLeave MessageKind = "leave"
)

// Message is one entry in a room log. Immutable once appended; the log may
// only drop entries from its head.
type Message struct {
	Sender string      `json:"sender"`
	Body   string      `json:"body"`
	Kind   MessageKind `json:"kind"`
	// Nick is the subject of a join/leave announcement, empty otherwise.
	Nick string `json:"nick,omitempty"`
}

func NewText(sender, body string) Message {
	return Message{Sender: sender, Body: body, Kind: KindText}
}

func NewMedia(sender, body string) Message {
	return Message{Sender: sender, Body: body, Kind: KindMedia}
}

func NewJoin(nick string) Message {
	return Message{
		Sender: SystemSender,
		Body:   fmt.Sprintf("`%s` joined the chat!", nick),
		Kind:   KindJoin,
		Nick:   nick,
	}
}

func NewLeave(nick string) Message {
	return Message{
		Sender: SystemSender,
		Body:   fmt.Sprintf("`%s` left the chat!", nick),
		Kind:   KindLeave,
		Nick:   nick,
	}
}

// System reports whether m is a membership announcement rather than a
// participant message.
func (m Message) System() bool {
	return m.Kind == KindJoin || m.Kind == KindLeave
}
