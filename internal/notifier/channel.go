// Package notifier turns a detected new post into one message on an external channel.
package notifier

import (
	"context"

	"github.com/aleister1102/postwatch/internal/models"
)

// Message is the structured notification for one new post.
type Message struct {
	Title string
	Link  string
	Image string
}

// Channel delivers messages to named destinations.
type Channel interface {
	Name() string
	Send(ctx context.Context, destination string, msg Message) error
	// ResolveDestination checks that destination can receive messages for tenantID.
	ResolveDestination(ctx context.Context, tenantID, destination string) error
}

// HistoryRecorder stores dispatch decisions.
type HistoryRecorder interface {
	RecordDispatch(ctx context.Context, rec models.DispatchRecord) error
}
