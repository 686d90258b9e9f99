package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techblog/techblog/auth"
	"github.com/techblog/techblog/middleware"
	"github.com/techblog/techblog/models"
	"github.com/techblog/techblog/store"
	"github.com/techblog/techblog/utils"
)

// PostController manages CRUD operations for posts and comments.
type PostController struct {
	content *store.ContentStore
	log     *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(content *store.ContentStore, log *zap.Logger) *PostController {
	return &PostController{content: content, log: log}
}

type postRequest struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
}

type commentRequest struct {
	Content string `json:"content" form:"content"`
}

type commentView struct {
	models.Comment
	CanEdit bool `json:"can_edit"`
}

type postView struct {
	*models.Post
	CanEdit  bool          `json:"can_edit"`
	Comments []commentView `json:"comments"`
}

// ListPosts returns every post, newest first, with its author.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page := parsePage(ctx)
	posts, total, err := p.content.ListPosts(ctx.Request.Context(), page)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"items": posts, "pagination": pagination(page, total)})
}

// Dashboard returns the posts written by the caller.
func (p *PostController) Dashboard(ctx *gin.Context) {
	page := parsePage(ctx)
	posts, total, err := p.content.ListPostsByAuthor(ctx.Request.Context(), middleware.Identity(ctx).UserID, page)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"items": posts, "pagination": pagination(page, total)})
}

// GetPost returns a single post with its comments, flagging what the caller may edit.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.content.GetPostWithComments(ctx.Request.Context(), postID)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}

	actor := middleware.Identity(ctx)
	view := postView{
		Post:     post,
		CanEdit:  auth.Authorize(auth.ActionUpdate, actor, post.UserID) == auth.Allowed,
		Comments: make([]commentView, 0, len(post.Comments)),
	}
	for _, c := range post.Comments {
		view.Comments = append(view.Comments, commentView{
			Comment: c,
			CanEdit: auth.Authorize(auth.ActionUpdate, actor, c.UserID) == auth.Allowed,
		})
	}
	utils.Success(ctx, gin.H{"post": view})
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	post, err := p.content.CreatePost(ctx.Request.Context(), middleware.Identity(ctx).UserID, req.Title, req.Content)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost allows the author to update their post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req postRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}
	post, err := p.content.UpdatePost(ctx.Request.Context(), postID, middleware.Identity(ctx).UserID,
		store.PostFields{Title: req.Title, Content: req.Content})
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost allows the author to delete their post and its comments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := p.content.DeletePost(ctx.Request.Context(), postID, middleware.Identity(ctx).UserID); err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// CreateComment allows authenticated users to comment on posts.
func (p *PostController) CreateComment(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}
	comment, err := p.content.CreateComment(ctx.Request.Context(), postID, middleware.Identity(ctx).UserID, req.Content)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// UpdateComment allows a comment's author to edit it.
func (p *PostController) UpdateComment(ctx *gin.Context) {
	commentID, ok := parseID(ctx, "commentId")
	if !ok {
		return
	}
	var req commentRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}
	comment, err := p.content.UpdateComment(ctx.Request.Context(), commentID, middleware.Identity(ctx).UserID, req.Content)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment allows a comment's author to delete it.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	commentID, ok := parseID(ctx, "commentId")
	if !ok {
		return
	}
	if err := p.content.DeleteComment(ctx.Request.Context(), commentID, middleware.Identity(ctx).UserID); err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}
