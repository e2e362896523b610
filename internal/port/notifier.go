package port

import (
	"context"

	"github.com/olyamironova/escrow-engine/internal/domain"
)

// Notifier delivers committed state changes to the outside world.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event) error
}
