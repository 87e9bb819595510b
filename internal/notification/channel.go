package notification

import (
	"context"

	"github.com/todoai/eventflow/internal/domain"
)

// Channel delivers a notification synchronously.
type Channel interface {
	Name() domain.Channel
	Send(ctx context.Context, n *domain.Notification) error
}

// InAppChannel delivers in-process; the notification record itself is what
// clients read, so sending always succeeds.
type InAppChannel struct{}

// Name implements Channel.
func (InAppChannel) Name() domain.Channel { return domain.ChannelInApp }

// Send implements Channel.
func (InAppChannel) Send(ctx context.Context, n *domain.Notification) error { return nil }
