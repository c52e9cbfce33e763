package realtime

import (
	"go.uber.org/zap"

	"github.com/versevilla/forum/models"
)

// Dispatcher delivers new comments to the connections subscribed to their post.
type Dispatcher struct {
	registry *Registry
	log      *zap.Logger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{registry: registry, log: log}
}

// Publish sends comment to every connection subscribed to postID when called.
// Connections joining afterwards do not receive it. It never blocks on a slow
// subscriber and returns how many connections accepted the event.
func (d *Dispatcher) Publish(postID string, comment models.Comment) int {
	subs := d.registry.Subscribers(postID)
	if len(subs) == 0 {
		return 0
	}

	ev := Event{Event: EventNewComment, PostID: postID, Data: comment}
	delivered := 0
	for _, s := range subs {
		if s.Deliver(ev) {
			delivered++
		}
	}

	deliveredTotal.Add(float64(delivered))
	if dropped := len(subs) - delivered; dropped > 0 {
		droppedTotal.Add(float64(dropped))
		d.log.Warn("comment broadcast dropped for some subscribers",
			zap.String("post_id", postID),
			zap.String("comment_id", comment.ID),
			zap.Int("dropped", dropped))
	}
	d.log.Debug("comment broadcast",
		zap.String("post_id", postID),
		zap.String("comment_id", comment.ID),
		zap.Int("delivered", delivered))
	return delivered
}
