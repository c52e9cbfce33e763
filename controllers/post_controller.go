package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/versevilla/forum/services"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/utils"
)

// PostController manages posts and their comments.
type PostController struct {
	posts    *services.PostService
	comments *services.CommentService
	log      *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService, comments *services.CommentService, log *zap.Logger) *PostController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostController{posts: posts, comments: comments, log: log}
}

type postRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
	GroupID  string `json:"group_id"`
}

func (r postRequest) input() services.PostInput {
	return services.PostInput{Title: r.Title, Content: r.Content, ImageURL: r.ImageURL, GroupID: r.GroupID}
}

// CreatePost publishes a new post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	post, err := p.posts.Create(ctx.Request.Context(), actor, req.input())
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Created(ctx, gin.H{"post": post})
}

// ListPosts returns paginated posts, newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	q := store.PostQuery{
		Page:     page,
		PageSize: pageSize,
		Search:   strings.TrimSpace(ctx.Query("search")),
		GroupID:  strings.TrimSpace(ctx.Query("group_id")),
	}
	posts, total, err := p.posts.List(ctx.Request.Context(), q)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, paginated(posts, page, pageSize, total))
}

// ListUserPosts returns posts created by a specific user.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	userID := strings.TrimSpace(ctx.Param("id"))
	if userID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "missing user id")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	posts, total, err := p.posts.List(ctx.Request.Context(), store.PostQuery{Page: page, PageSize: pageSize, UserID: userID})
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, paginated(posts, page, pageSize, total))
}

// GetPost returns a single post with its comments in order.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.posts.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost lets the author edit their post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	post, err := p.posts.Update(ctx.Request.Context(), actor, ctx.Param("id"), req.input())
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// AssignGroup moves the author's post into a group, or out of it with an empty group_id.
func (p *PostController) AssignGroup(ctx *gin.Context) {
	var req struct {
		GroupID string `json:"group_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40027, "invalid request payload")
		return
	}
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	post, err := p.posts.AssignGroup(ctx.Request.Context(), actor, ctx.Param("id"), req.GroupID)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost lets the author or the owning group's creator delete a post.
func (p *PostController) DeletePost(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	if err := p.posts.Delete(ctx.Request.Context(), actor, ctx.Param("id")); err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// CreateComment appends a comment through the admission-gated write path.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	text := req.Text
	if strings.TrimSpace(text) == "" {
		text = req.Content
	}

	comment, err := p.comments.Submit(ctx.Request.Context(), actor, ctx.Param("id"), text)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Created(ctx, gin.H{"comment": comment})
}
