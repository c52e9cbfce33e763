package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/permissions"
	"github.com/versevilla/forum/utils"
)

// Stage is a step of the comment write path.
type Stage int

const (
	StageReceived Stage = iota
	StageAuthorized
	StageAdmitted
	StagePersisted
	StageBroadcast
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageAuthorized:
		return "authorized"
	case StageAdmitted:
		return "admitted"
	case StagePersisted:
		return "persisted"
	case StageBroadcast:
		return "broadcast"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// CommentService runs comment submissions through the write path.
type CommentService struct {
	storage CommentStorage
	gate    Admission
	bus     Broadcaster
	cache   Cache
	log     *zap.Logger
}

// NewCommentService wires the write path. gate and cache may be nil.
func NewCommentService(storage CommentStorage, gate Admission, bus Broadcaster, cache Cache, log *zap.Logger) *CommentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommentService{
		storage: storage,
		gate:    orAllowAll(gate),
		bus:     bus,
		cache:   orNoCache(cache),
		log:     log,
	}
}

// Submit validates, authorizes, admits, persists and broadcasts a comment.
// Stages run strictly in order and a rejection stops the pipeline with nothing
// written. Once persisted, the comment is returned even if nobody receives the broadcast.
func (s *CommentService) Submit(ctx context.Context, actor Actor, postID, text string) (*models.Comment, error) {
	log := s.log.With(zap.String("post_id", postID), zap.String("user_id", actor.ID))

	text = strings.TrimSpace(utils.Sanitize(text))
	if text == "" {
		return nil, &ValidationError{Field: "text", Message: "comment text is required"}
	}
	post, err := s.storage.FindPost(ctx, postID)
	if err != nil {
		return nil, missing(err, "post", postID)
	}
	s.advance(log, StageReceived)

	if !permissions.CanPost(actor.ID, post.Group) {
		return nil, &AuthorizationError{Message: "you must be a member of this group to comment"}
	}
	s.advance(log, StageAuthorized)

	if err := admit(ctx, s.gate, "", text); err != nil {
		log.Info("comment rejected by admission gate", zap.Error(err))
		return nil, err
	}
	s.advance(log, StageAdmitted)

	if err := s.storage.EnsureUser(ctx, actor.ID, actor.Username); err != nil {
		return nil, fmt.Errorf("submit comment: %w", err)
	}
	comment := &models.Comment{UserID: actor.ID, Text: text}
	if err := s.storage.AppendComment(ctx, postID, comment); err != nil {
		return nil, missing(err, "post", postID)
	}
	s.advance(log, StagePersisted, zap.String("comment_id", comment.ID), zap.Int64("seq", comment.Seq))

	s.cache.Delete(ctx, PostDetailKey(postID))
	delivered := 0
	if s.bus != nil {
		delivered = s.bus.Publish(postID, *comment)
	}
	s.advance(log, StageBroadcast, zap.Int("delivered", delivered))

	s.advance(log, StageDone)
	return comment, nil
}

func (s *CommentService) advance(log *zap.Logger, stage Stage, fields ...zap.Field) {
	log.Debug("comment write path", append([]zap.Field{zap.Stringer("stage", stage)}, fields...)...)
}
