package service

import (
	"context"

	"github.com/Skotchmaster/grocery_shop/pkg/events"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
)

// publish is best effort: the state change is already committed, so a
// broker failure is logged and otherwise ignored.
func publish(ctx context.Context, p events.Publisher, topic, key string, event map[string]any) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed",
			"topic", topic,
			"type", event["type"],
			"error", err,
		)
	}
}
