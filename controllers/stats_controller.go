package controllers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/versevilla/forum/realtime"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/utils"
)

// Counter reports aggregate row counts.
type Counter interface {
	Counts(ctx context.Context) (store.Counts, error)
}

// StatsController provides forum statistics such as counts and live viewers.
type StatsController struct {
	counter  Counter
	registry *realtime.Registry
	log      *zap.Logger
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(counter Counter, registry *realtime.Registry, log *zap.Logger) *StatsController {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsController{counter: counter, registry: registry, log: log}
}

// GetStats returns aggregate statistics for the forum.
func (s *StatsController) GetStats(ctx *gin.Context) {
	counts, err := s.counter.Counts(ctx.Request.Context())
	if err != nil {
		// Fallback to zeros instead of failing the whole endpoint
		s.log.Warn("stats counts failed", zap.Error(err))
		counts = store.Counts{}
	}
	live := realtime.Stats{}
	if s.registry != nil {
		live = s.registry.Stats()
	}
	utils.Success(ctx, gin.H{
		"user_count":    counts.Users,
		"post_count":    counts.Posts,
		"comment_count": counts.Comments,
		"group_count":   counts.Groups,
		"live":          live,
	})
}
