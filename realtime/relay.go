package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/versevilla/forum/models"
)

// envelope is the Redis wire format for a relayed comment.
type envelope struct {
	Origin  string         `json:"origin"`
	PostID  string         `json:"post_id"`
	Comment models.Comment `json:"comment"`
}

// Relay extends a Dispatcher across instances through a Redis pub/sub channel.
// Local subscribers are served directly; envelopes from this instance are ignored
// on the way back so nobody receives a comment twice.
type Relay struct {
	local   *Dispatcher
	rdb     *redis.Client
	channel string
	origin  string
	timeout time.Duration
	log     *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	ready     chan struct{}
	readyOnce sync.Once
	inflight  sync.WaitGroup
}

// NewRelay creates a relay publishing on channel.
func NewRelay(local *Dispatcher, rdb *redis.Client, channel string, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		local:   local,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		timeout: 2 * time.Second,
		log:     log,
		ready:   make(chan struct{}),

		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Publish delivers locally, then forwards to other instances in the background.
func (r *Relay) Publish(postID string, comment models.Comment) int {
	delivered := r.local.Publish(postID, comment)

	payload, err := json.Marshal(envelope{Origin: r.origin, PostID: postID, Comment: comment})
	if err != nil {
		relayErrorsTotal.WithLabelValues("encode").Inc()
		r.log.Error("relay encode failed", zap.String("post_id", postID), zap.Error(err))
		return delivered
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
			relayErrorsTotal.WithLabelValues("publish").Inc()
			r.log.Warn("relay publish failed", zap.String("post_id", postID), zap.Error(err))
		}
	}()
	return delivered
}

// Wait blocks until background publishes have finished.
func (r *Relay) Wait() {
	r.inflight.Wait()
}

// Ready is closed once Run has an active subscription.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run consumes the channel until ctx is cancelled, delivering envelopes from other
// instances. Subscribe failures are retried with backoff; Run only returns on cancel,
// so an unreachable Redis never stops the caller.
func (r *Relay) Run(ctx context.Context) error {
	backoff := r.minBackoff
	for {
		subscribed, err := r.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = r.minBackoff
		}
		relayErrorsTotal.WithLabelValues("subscribe").Inc()
		r.log.Warn("comment relay subscription failed, retrying",
			zap.String("channel", r.channel), zap.Duration("backoff", backoff), zap.Error(err))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		backoff = min(backoff*2, r.maxBackoff)
	}
}

// consume holds one subscription until it ends or ctx is cancelled.
func (r *Relay) consume(ctx context.Context) (bool, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.log.Info("comment relay subscribed", zap.String("channel", r.channel), zap.String("origin", r.origin))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-msgs:
			if !ok {
				return true, errors.New("subscription closed")
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		relayErrorsTotal.WithLabelValues("decode").Inc()
		r.log.Warn("relay dropped malformed envelope", zap.Error(err))
		return
	}
	if env.Origin == r.origin || env.PostID == "" {
		return
	}
	r.local.Publish(env.PostID, env.Comment)
}
