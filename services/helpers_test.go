package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/moderation"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/testutil"
	"github.com/versevilla/forum/utils"
)

type classifierFunc func(ctx context.Context, instruction, text string) (string, error)

func (f classifierFunc) Generate(ctx context.Context, instruction, text string) (string, error) {
	return f(ctx, instruction, text)
}

// scriptedGate builds a real gate whose classifier answers with out, or err when set.
func scriptedGate(out string, err error) (*moderation.Gate, *int32) {
	var calls int32
	c := classifierFunc(func(ctx context.Context, instruction, text string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return out, err
	})
	return moderation.NewGate(c, time.Second, nil), &calls
}

var errClassifierDown = errors.New("connection refused")

type published struct {
	PostID  string
	Comment models.Comment
}

type recordingBus struct {
	mu   sync.Mutex
	sent []published
}

func (b *recordingBus) Publish(postID string, c models.Comment) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, published{postID, c})
	return 1
}

func (b *recordingBus) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.sent...)
}

type fixture struct {
	db    *gorm.DB
	store *store.GormStore
	cache *utils.Cache
	redis *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &fixture{db: db, store: store.New(db), cache: utils.NewCache(rdb, nil), redis: mr}
}

func actor(u models.User) Actor {
	return Actor{ID: u.ID, Username: u.Username}
}

func (f *fixture) commentCount(t *testing.T, postID string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}
