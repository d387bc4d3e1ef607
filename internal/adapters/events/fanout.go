package events

import (
	"context"
	"delivery-dispatch-service/internal/ports"
	"errors"
)

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(ctx context.Context, e ports.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
