package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/permissions"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/utils"
)

// GroupInput carries the fields of a new group.
type GroupInput struct {
	Name        string
	Description string
	Theme       string
	ImageURL    string
}

// GroupService manages groups and memberships.
type GroupService struct {
	storage GroupStorage
	cache   Cache
	log     *zap.Logger
}

// NewGroupService creates a GroupService. cache may be nil.
func NewGroupService(storage GroupStorage, cache Cache, log *zap.Logger) *GroupService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GroupService{storage: storage, cache: orNoCache(cache), log: log}
}

// Create makes a group with the actor as creator and first member.
func (s *GroupService) Create(ctx context.Context, actor Actor, in GroupInput) (*models.Group, error) {
	name := strings.TrimSpace(utils.Sanitize(in.Name))
	desc := strings.TrimSpace(utils.Sanitize(in.Description))
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "group name is required"}
	}
	if desc == "" {
		return nil, &ValidationError{Field: "description", Message: "group description is required"}
	}

	if err := s.storage.EnsureUser(ctx, actor.ID, actor.Username); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	group := &models.Group{
		Name:        name,
		Description: desc,
		Theme:       strings.TrimSpace(utils.Sanitize(in.Theme)),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		CreatorID:   actor.ID,
	}
	if err := s.storage.CreateGroup(ctx, group); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ConflictError{Message: "group name already taken"}
		}
		return nil, err
	}
	if group.Theme == "" {
		group.Theme = "General"
	}
	s.log.Info("group created", zap.String("group_id", group.ID), zap.String("user_id", actor.ID))
	return group, nil
}

// List returns all groups.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	return s.storage.ListGroups(ctx)
}

// Get returns a group with its members.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.storage.FindGroup(ctx, id)
	if err != nil {
		return nil, missing(err, "group", id)
	}
	return group, nil
}

// Posts lists the posts of an existing group.
func (s *GroupService) Posts(ctx context.Context, id string, q store.PostQuery) ([]models.Post, int64, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	q.GroupID = id
	return s.storage.ListPosts(ctx, q)
}

// Join adds the actor to a group. Joining twice is harmless.
func (s *GroupService) Join(ctx context.Context, actor Actor, id string) (*models.Group, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.storage.EnsureUser(ctx, actor.ID, actor.Username); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	if err := s.storage.AddMember(ctx, id, actor.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Leave removes the actor from a group. Leaving a group one is not in is harmless.
func (s *GroupService) Leave(ctx context.Context, actor Actor, id string) (*models.Group, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.storage.RemoveMember(ctx, id, actor.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a group the actor created. Its posts stay, without a group.
func (s *GroupService) Delete(ctx context.Context, actor Actor, id string) error {
	group, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !permissions.CanDeleteGroup(actor.ID, group) {
		return &AuthorizationError{Message: "only the group creator can delete this group"}
	}
	if err := s.storage.DeleteGroup(ctx, id); err != nil {
		return missing(err, "group", id)
	}
	s.cache.InvalidateByPrefix(ctx, postDetailPrefix)
	s.log.Info("group deleted", zap.String("group_id", id), zap.String("user_id", actor.ID))
	return nil
}
