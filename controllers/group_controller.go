package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/services"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/utils"
)

// GroupController manages groups and memberships.
type GroupController struct {
	groups *services.GroupService
	log    *zap.Logger
}

// NewGroupController creates a new GroupController instance.
func NewGroupController(groups *services.GroupService, log *zap.Logger) *GroupController {
	if log == nil {
		log = zap.NewNop()
	}
	return &GroupController{groups: groups, log: log}
}

// CreateGroup makes a group owned by the caller.
func (g *GroupController) CreateGroup(ctx *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Theme       string `json:"theme"`
		ImageURL    string `json:"image_url"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	group, err := g.groups.Create(ctx.Request.Context(), actor, services.GroupInput{
		Name:        req.Name,
		Description: req.Description,
		Theme:       req.Theme,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Created(ctx, gin.H{"group": group})
}

// ListGroups returns all groups.
func (g *GroupController) ListGroups(ctx *gin.Context) {
	groups, err := g.groups.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Success(ctx, gin.H{"items": groups})
}

// GetGroup returns one group with its members.
func (g *GroupController) GetGroup(ctx *gin.Context) {
	group, err := g.groups.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Success(ctx, gin.H{"group": group})
}

// ListGroupPosts returns the posts of a group, newest first.
func (g *GroupController) ListGroupPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	posts, total, err := g.groups.Posts(ctx.Request.Context(), ctx.Param("id"), store.PostQuery{Page: page, PageSize: pageSize})
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Success(ctx, paginated(posts, page, pageSize, total))
}

// JoinGroup adds the caller to a group.
func (g *GroupController) JoinGroup(ctx *gin.Context) {
	g.membership(ctx, g.groups.Join)
}

// LeaveGroup removes the caller from a group.
func (g *GroupController) LeaveGroup(ctx *gin.Context) {
	g.membership(ctx, g.groups.Leave)
}

func (g *GroupController) membership(ctx *gin.Context, op func(ctx context.Context, actor services.Actor, id string) (*models.Group, error)) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	group, err := op(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Success(ctx, gin.H{"group": group})
}

// DeleteGroup lets the creator delete a group.
func (g *GroupController) DeleteGroup(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	if err := g.groups.Delete(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "group deleted"})
}
