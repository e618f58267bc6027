package publisher

import (
	"context"

	"linkage/internal/contact/models"
)

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, []models.LinkEvent) error { return nil }
