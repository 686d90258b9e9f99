package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techblog/techblog/store"
	"github.com/techblog/techblog/utils"
)

// respondError translates store failures into transport responses.
func respondError(ctx *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
	case errors.Is(err, store.ErrDuplicateUsername):
		utils.Error(ctx, http.StatusConflict, 40901, store.ErrDuplicateUsername.Error())
	case errors.Is(err, store.ErrAuthFailure):
		utils.Error(ctx, http.StatusUnauthorized, 40106, store.ErrAuthFailure.Error())
	case errors.Is(err, store.ErrNotFoundOrForbidden):
		utils.Error(ctx, http.StatusNotFound, 40404, "not found")
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	default:
		log.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

// parseID reads a numeric path parameter. Malformed ids are reported as not found.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
		return 0, false
	}
	return uint(id), true
}

func parsePage(ctx *gin.Context) store.Page {
	page, _ := strconv.Atoi(ctx.Query("page"))
	size, _ := strconv.Atoi(ctx.Query("page_size"))
	return store.Page{Number: page, Size: size}
}

func pagination(page store.Page, total int64) gin.H {
	page = page.Normalize()
	return gin.H{
		"page":        page.Number,
		"page_size":   page.Size,
		"total":       total,
		"total_pages": int((total + int64(page.Size) - 1) / int64(page.Size)),
	}
}
