package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techblog/techblog/auth"
	"github.com/techblog/techblog/middleware"
	"github.com/techblog/techblog/store"
	"github.com/techblog/techblog/utils"
)

// AuthController handles signup, login, logout and account endpoints.
type AuthController struct {
	creds    *store.CredentialStore
	sessions *auth.Manager
	cookie   middleware.SessionCookie
	log      *zap.Logger
}

// NewAuthController creates an AuthController.
func NewAuthController(creds *store.CredentialStore, sessions *auth.Manager, cookie middleware.SessionCookie, log *zap.Logger) *AuthController {
	return &AuthController{creds: creds, sessions: sessions, cookie: cookie, log: log}
}

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Signup registers a user and logs them in.
func (a *AuthController) Signup(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	userID, err := a.creds.Register(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}

	token, err := a.sessions.Start(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	a.setSessionCookie(ctx, token)

	user, err := a.creds.Get(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Login verifies credentials and opens a session.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	token, identity, err := a.sessions.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	a.setSessionCookie(ctx, token)

	user, err := a.creds.Get(ctx.Request.Context(), identity.UserID)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout destroys the caller's session, whether or not it was still valid.
func (a *AuthController) Logout(ctx *gin.Context) {
	if err := a.sessions.Logout(ctx.Request.Context(), middleware.SessionToken(ctx)); err != nil {
		a.log.Warn("logout failed", zap.Error(err))
	}
	a.cookie.Write(ctx, "", -1)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	user, err := a.creds.Get(ctx.Request.Context(), middleware.Identity(ctx).UserID)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, user)
}

// ChangePassword rotates the caller's password.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	var req struct {
		Current string `json:"current_password" form:"current_password"`
		New     string `json:"new_password" form:"new_password"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}

	if err := a.creds.ChangePassword(ctx.Request.Context(), middleware.Identity(ctx).UserID, req.Current, req.New); err != nil {
		respondError(ctx, a.log, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "password changed"})
}

func (a *AuthController) setSessionCookie(ctx *gin.Context, token string) {
	a.cookie.Write(ctx, token, a.sessions.TTL())
}
