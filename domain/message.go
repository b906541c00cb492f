// Package domain contains core concepts of the chat system.
// This file defines the canonical Message and the rules around its mutable fields.
// Messages are immutable once created, except for Read and Status.
package domain

import (
	"time"
)

type SenderRole string

const (
	RoleSelf         SenderRole = "self"
	RoleCounterparty SenderRole = "counterparty"
)

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// rank orders statuses so that a merge can only move them forward.
func (s Status) rank() int {
	switch s {
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return 0
	}
}

// Advance returns the furthest of both statuses.
func (s Status) Advance(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	if s == "" {
		return StatusSent
	}
	return s
}

func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusSent, StatusDelivered, StatusRead:
		return Status(raw), true
	default:
		return "", false
	}
}

// Message is the normalized, store-agnostic chat record.
type Message struct {
	ID             string
	ConversationID string
	Content        string
	SenderID       string
	RecipientID    string
	SenderRole     SenderRole
	Timestamp      int64 // epoch millis, sole sort key
	Read           bool
	Status         Status
	// Volatile is set when the store gave no id and one was synthesized locally.
	Volatile bool
	// Path is the store location the record was read from or written to.
	Path Path
}

func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp).UTC()
}

func (m Message) IsFromSelf() bool {
	return m.SenderRole == RoleSelf
}
