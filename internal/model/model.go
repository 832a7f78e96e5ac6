// Package model defines the domain types used across the application.
package model

import "time"

// Update is a single inbound Telegram update reduced to the fields the
// router needs.
type Update struct {
	ID           int
	HasMessage   bool
	SenderID     string
	SenderChatID string
	SenderName   string
	Text         string
}

// ListenerState is the routing state persisted between runs.
type ListenerState struct {
	// Offset is the next update id to request from Telegram.
	Offset            int
	LastActiveSession string
	AutoCapture       bool
}

// ParsedMessage is the result of splitting an operator message into a
// target session and the text to inject.
type ParsedMessage struct {
	// TargetSession is empty when the message names no session and should
	// go to the last active one.
	TargetSession string
	Payload       string
	Bypass        bool
}

// CaptureResult is a snapshot of a session's recent scrollback.
type CaptureResult struct {
	Text      string
	Truncated bool
}

// Outcome classifies how a processed update ended.
type Outcome string

// Possible update outcomes.
const (
	OutcomeIgnored         Outcome = "ignored"
	OutcomeUnauthorized    Outcome = "unauthorized"
	OutcomeCommand         Outcome = "command"
	OutcomeNoActiveSession Outcome = "no_active_session"
	OutcomeNoSessions      Outcome = "no_sessions"
	OutcomeSessionNotFound Outcome = "session_not_found"
	OutcomeDelivered       Outcome = "delivered"
	OutcomeDeliveryFailed  Outcome = "delivery_failed"
	OutcomeError           Outcome = "error"
)

// DeliveryState is a step of the two-phase keystroke delivery.
type DeliveryState string

// Delivery states in the order they are visited.
const (
	StateResolving    DeliveryState = "resolving"
	StateSendingText  DeliveryState = "sending_text"
	StateAwaitBuffer  DeliveryState = "await_buffer"
	StateSendingEnter DeliveryState = "sending_enter"
	StateDelivered    DeliveryState = "delivered"
	StateFailed       DeliveryState = "failed"
)

// Delivery is a journal entry describing one processed update.
type Delivery struct {
	ID        int64
	UpdateID  int
	ChatID    string
	Session   string
	Outcome   Outcome
	Bypass    bool
	Error     string
	CreatedAt time.Time
}
