package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/permissions"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/utils"
)

// PostInput carries the writable fields of a post.
type PostInput struct {
	Title    string
	Content  string
	ImageURL string
	GroupID  string
}

func (in PostInput) sanitized() PostInput {
	return PostInput{
		Title:    strings.TrimSpace(utils.Sanitize(in.Title)),
		Content:  strings.TrimSpace(utils.Sanitize(in.Content)),
		ImageURL: strings.TrimSpace(in.ImageURL),
		GroupID:  strings.TrimSpace(in.GroupID),
	}
}

// PostService manages posts.
type PostService struct {
	storage PostStorage
	gate    Admission
	cache   Cache
	log     *zap.Logger
}

// NewPostService creates a PostService. gate and cache may be nil.
func NewPostService(storage PostStorage, gate Admission, cache Cache, log *zap.Logger) *PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{storage: storage, gate: orAllowAll(gate), cache: orNoCache(cache), log: log}
}

// Create publishes a new post, optionally inside a group the actor belongs to.
func (s *PostService) Create(ctx context.Context, actor Actor, in PostInput) (*models.Post, error) {
	in = in.sanitized()
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.Content == "" {
		return nil, &ValidationError{Field: "content", Message: "content is required"}
	}

	post := &models.Post{UserID: actor.ID, Title: in.Title, Content: in.Content, ImageURL: in.ImageURL}
	if in.GroupID != "" {
		group, err := s.storage.FindGroup(ctx, in.GroupID)
		if err != nil {
			return nil, missing(err, "group", in.GroupID)
		}
		if !permissions.CanPost(actor.ID, group) {
			return nil, &AuthorizationError{Message: "you must be a member of this group to post"}
		}
		post.GroupID = &group.ID
	}

	if err := admit(ctx, s.gate, in.Title, in.Content); err != nil {
		s.log.Info("post rejected by admission gate", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, err
	}

	if err := s.storage.EnsureUser(ctx, actor.ID, actor.Username); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if err := s.storage.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	s.log.Debug("post created", zap.String("post_id", post.ID), zap.String("user_id", actor.ID))
	return post, nil
}

// Get returns a post with its author, group and comments in ledger order.
func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	var cached models.Post
	if s.cache.GetJSON(ctx, PostDetailKey(id), &cached) {
		return &cached, nil
	}
	post, err := s.storage.LoadPostDetail(ctx, id)
	if err != nil {
		return nil, missing(err, "post", id)
	}
	s.cache.SetJSON(ctx, PostDetailKey(id), post, postDetailTTL)
	// A comment appended after the load may have invalidated before our write landed.
	if n, err := s.storage.CommentCount(ctx, id); err != nil || n != post.CommentCount {
		s.cache.Delete(ctx, PostDetailKey(id))
	}
	return post, nil
}

// List returns one page of posts and the total count.
func (s *PostService) List(ctx context.Context, q store.PostQuery) ([]models.Post, int64, error) {
	return s.storage.ListPosts(ctx, q)
}

// Update edits the actor's own post. Empty fields keep their current value.
func (s *PostService) Update(ctx context.Context, actor Actor, id string, in PostInput) (*models.Post, error) {
	in = in.sanitized()
	if in.Title == "" && in.Content == "" && in.ImageURL == "" {
		return nil, &ValidationError{Field: "title", Message: "nothing to update"}
	}
	post, err := s.storage.FindPost(ctx, id)
	if err != nil {
		return nil, missing(err, "post", id)
	}
	if !permissions.CanModify(actor.ID, post) {
		return nil, &AuthorizationError{Message: "you can only update your own posts"}
	}

	if in.Title != "" {
		post.Title = in.Title
	}
	if in.Content != "" {
		post.Content = in.Content
	}
	if in.ImageURL != "" {
		post.ImageURL = in.ImageURL
	}
	if err := admit(ctx, s.gate, post.Title, post.Content); err != nil {
		return nil, err
	}

	if err := s.storage.UpdatePost(ctx, post); err != nil {
		return nil, missing(err, "post", id)
	}
	s.cache.Delete(ctx, PostDetailKey(id))
	return post, nil
}

// AssignGroup moves the actor's post into a group they belong to. An empty
// groupID removes the post from its group.
func (s *PostService) AssignGroup(ctx context.Context, actor Actor, id, groupID string) (*models.Post, error) {
	post, err := s.storage.FindPost(ctx, id)
	if err != nil {
		return nil, missing(err, "post", id)
	}
	if !permissions.CanModify(actor.ID, post) {
		return nil, &AuthorizationError{Message: "you can only move your own posts"}
	}

	var target *string
	if groupID = strings.TrimSpace(groupID); groupID != "" {
		group, err := s.storage.FindGroup(ctx, groupID)
		if err != nil {
			return nil, missing(err, "group", groupID)
		}
		if !permissions.CanPost(actor.ID, group) {
			return nil, &AuthorizationError{Message: "you must be a member of this group to post"}
		}
		target = &group.ID
		post.Group = group
	} else {
		post.Group = nil
	}

	if err := s.storage.SetPostGroup(ctx, id, target); err != nil {
		return nil, missing(err, "post", id)
	}
	post.GroupID = target
	s.cache.Delete(ctx, PostDetailKey(id))
	return post, nil
}

// Delete removes a post and its comments. The author and the owning group's
// creator may delete.
func (s *PostService) Delete(ctx context.Context, actor Actor, id string) error {
	post, err := s.storage.FindPost(ctx, id)
	if err != nil {
		return missing(err, "post", id)
	}
	if !permissions.CanDelete(actor.ID, post) {
		return &AuthorizationError{Message: "you can only delete your own posts"}
	}
	if err := s.storage.DeletePost(ctx, id); err != nil {
		return missing(err, "post", id)
	}
	s.cache.Delete(ctx, PostDetailKey(id))
	s.log.Info("post deleted", zap.String("post_id", id), zap.String("user_id", actor.ID))
	return nil
}
