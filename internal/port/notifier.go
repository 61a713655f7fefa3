package port

import (
	"context"

	"github.com/stokd/supply-ingest/internal/core/domain"
)

// Notifier delivers terminal-state notifications to the outbound sink.
// Delivery failures must not change a processing verdict; callers log and
// move on.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
