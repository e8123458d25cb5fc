// Package domain contains core concepts of the relay.
// This file defines Message records and conversation pairs.
// Messages are immutable once appended to the log.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable direct message.
type Message struct {
	ID         uuid.UUID // unique identifier
	FromUserID string
	ToUserID   string
	Text       string
	Timestamp  time.Time
	Read       bool // always false, never consumed
}

// Between reports whether the message belongs to the conversation of a and b,
// in either direction.
func (m Message) Between(a, b string) bool {
	return (m.FromUserID == a && m.ToUserID == b) ||
		(m.FromUserID == b && m.ToUserID == a)
}

// Direction tells a connection whether it authored the message.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// ConversationPair is the unordered pair of users identifying a thread.
type ConversationPair struct {
	Low  string
	High string
}

func NewConversationPair(a, b string) ConversationPair {
	if a > b {
		a, b = b, a
	}
	return ConversationPair{Low: a, High: b}
}
