package events

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"hyra-backend/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// Fanout delivers every event to all publishers and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, userID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
