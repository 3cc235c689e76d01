package notifier

import (
	"context"
	"fmt"

	"unitwatch/internal/unit"
)

// Notifier is one alert channel. Implementations must be safe for concurrent
// use: the dispatcher calls them from many goroutines at once.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, statuses []unit.Status) error
	NotifyError(ctx context.Context, cause error) error
	NotifyStart(ctx context.Context) error
}

// DeliveryError reports a failed notifier call.
type DeliveryError struct {
	Notifier string
	Kind     string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s notifier: %s failed: %v", e.Notifier, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
