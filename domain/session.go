// Package domain contains core concepts of the relay.
// This file defines connections and the sessions bound to them.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/google/uuid"

// ConnectionID identifies one live transport connection.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Session binds a connection to an authenticated user identity.
// It is created on authenticate and destroyed on disconnect.
type Session struct {
	ConnectionID ConnectionID
	UserID       string
	Username     string
}
