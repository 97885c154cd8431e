// Package notify carries post-commit notification intents to a dispatcher.
// Dispatch is best-effort: it runs only after a roster transaction commits
// and its failure never rolls back or retries the committed mutation.
package notify

import (
	"context"
	"log"
	"strings"
)

const (
	// KindJoinRequested notifies the owner about a pending join request.
	KindJoinRequested = "activity.join.requested"
	// KindJoinAccepted notifies a participant their request was accepted.
	KindJoinAccepted = "activity.join.accepted"
	// KindMemberJoined notifies the owner about a direct admission.
	KindMemberJoined = "activity.member.joined"
	// KindMemberRemoved notifies a participant they were removed.
	KindMemberRemoved = "activity.member.removed"
	// KindMemberLeft notifies the owner a participant left.
	KindMemberLeft = "activity.member.left"
)

// Message is one user-targeted notification intent.
type Message struct {
	RecipientID   string
	ActivityTitle string
	Kind          string
}

// Dispatcher delivers notification messages. Implementations must tolerate
// duplicate delivery; no return value is awaited for correctness.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// NormalizeKind normalizes a message kind token.
func NormalizeKind(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// LogDispatcher writes notification intents to the process log. It stands in
// for the push/record pipeline in tools and tests.
type LogDispatcher struct{}

// Dispatch logs the message.
func (LogDispatcher) Dispatch(_ context.Context, msg Message) error {
	log.Printf("notify %s: recipient=%s activity=%q", NormalizeKind(msg.Kind), msg.RecipientID, msg.ActivityTitle)
	return nil
}
