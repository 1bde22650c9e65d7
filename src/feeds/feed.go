package feeds

import (
	"context"

	"stratbot/src/datamodels"
)

// BarFeed delivers closed bars to subscribers. Watch registers which streams
// the feed should carry; Subscribe hands out a channel bundle that receives
// every bar from every watched stream.
type BarFeed interface {
	Watch(sub datamodels.StreamSubscription)
	Unwatch(sub datamodels.StreamSubscription)
	Subscribe(ctx context.Context, subscriberName string) (*datamodels.BarSubscription, error)
	Unsubscribe(ctx context.Context, subscriptionId string) error
	GetName() string
	Start(ctx context.Context) error
	IsStarted() bool
	Stop() error
}
