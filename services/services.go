// Package services implements the forum's write and read use cases on top of
// storage, the admission gate, the membership predicates and the broadcaster.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/moderation"
	"github.com/versevilla/forum/store"
)

const (
	postDetailPrefix = "cache:post:detail:"
	postDetailTTL    = time.Hour
)

// PostDetailKey is the cache key of a post's detail view.
func PostDetailKey(postID string) string {
	return postDetailPrefix + postID
}

// Actor is the verified identity performing a request.
type Actor struct {
	ID       string
	Username string
}

// Admission decides whether text may be written.
type Admission interface {
	Evaluate(ctx context.Context, title, body string) moderation.Verdict
}

// Broadcaster fans a persisted comment out to live viewers of its post.
type Broadcaster interface {
	Publish(postID string, comment models.Comment) int
}

// Cache is the best-effort detail cache.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) bool
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	InvalidateByPrefix(ctx context.Context, prefix string)
}

// UserStorage keeps the local copy of verified identities.
type UserStorage interface {
	EnsureUser(ctx context.Context, id, username string) error
}

// PostStorage persists posts.
type PostStorage interface {
	UserStorage
	CreatePost(ctx context.Context, post *models.Post) error
	FindPost(ctx context.Context, id string) (*models.Post, error)
	LoadPostDetail(ctx context.Context, id string) (*models.Post, error)
	CommentCount(ctx context.Context, postID string) (int64, error)
	ListPosts(ctx context.Context, q store.PostQuery) ([]models.Post, int64, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	SetPostGroup(ctx context.Context, postID string, groupID *string) error
	DeletePost(ctx context.Context, id string) error
	FindGroup(ctx context.Context, id string) (*models.Group, error)
}

// CommentStorage appends to comment ledgers.
type CommentStorage interface {
	UserStorage
	FindPost(ctx context.Context, id string) (*models.Post, error)
	AppendComment(ctx context.Context, postID string, comment *models.Comment) error
}

// GroupStorage persists groups and memberships.
type GroupStorage interface {
	UserStorage
	CreateGroup(ctx context.Context, group *models.Group) error
	FindGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	DeleteGroup(ctx context.Context, id string) error
	ListPosts(ctx context.Context, q store.PostQuery) ([]models.Post, int64, error)
}

type noCache struct{}

func (noCache) GetJSON(context.Context, string, interface{}) bool             { return false }
func (noCache) SetJSON(context.Context, string, interface{}, time.Duration) {}
func (noCache) Delete(context.Context, ...string)                            {}
func (noCache) InvalidateByPrefix(context.Context, string)                   {}

type allowAll struct{}

func (allowAll) Evaluate(context.Context, string, string) moderation.Verdict {
	return moderation.Verdict{Kind: moderation.Allow}
}

func orNoCache(c Cache) Cache {
	if c == nil {
		return noCache{}
	}
	return c
}

func orAllowAll(a Admission) Admission {
	if a == nil {
		return allowAll{}
	}
	return a
}

// missing translates a storage not-found into a NotFoundError for resource.
func missing(err error, resource, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

func admit(ctx context.Context, gate Admission, title, body string) error {
	if v := gate.Evaluate(ctx, title, body); !v.Allowed() {
		return &AdmissionBlockedError{Reason: v.Reason}
	}
	return nil
}
