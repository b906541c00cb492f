// Package domain contains core concepts of the chat system.
// This file defines Participant entities.
// No runtime, network, or UI logic should be added here.
package domain

// Participant is one side of a conversation as seen by the engine.
type Participant struct {
	ID          string
	DisplayName string
}

// Other returns whichever of both ids is not self. It returns an empty string
// when both ids are self.
func (p Participant) Other(a, b string) string {
	switch {
	case a != "" && a != p.ID:
		return a
	case b != "" && b != p.ID:
		return b
	default:
		return ""
	}
}
