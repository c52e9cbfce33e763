package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/versevilla/forum/middleware"
	"github.com/versevilla/forum/services"
	"github.com/versevilla/forum/utils"
)

// respondError maps a service error onto the HTTP status classes and business codes.
func respondError(ctx *gin.Context, log *zap.Logger, err error) {
	var (
		verr     *services.ValidationError
		aerr     *services.AuthorizationError
		blocked  *services.AdmissionBlockedError
		nf       *services.NotFoundError
		conflict *services.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40010, verr.Error())
	case errors.As(err, &blocked):
		utils.Error(ctx, http.StatusForbidden, 40310, blocked.Error())
	case errors.As(err, &aerr):
		utils.Error(ctx, http.StatusForbidden, 40301, aerr.Error())
	case errors.As(err, &nf):
		code := 40401
		if nf.Resource == "group" {
			code = 40402
		}
		utils.Error(ctx, http.StatusNotFound, code, nf.Error())
	case errors.As(err, &conflict):
		utils.Error(ctx, http.StatusConflict, 40901, conflict.Error())
	default:
		log.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "server error")
	}
}

// actorFrom returns the verified identity, answering 401 when there is none.
func actorFrom(ctx *gin.Context) (services.Actor, bool) {
	id, username, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return services.Actor{}, false
	}
	return services.Actor{ID: id, Username: username}, true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func paginated(items interface{}, page, pageSize int, total int64) gin.H {
	return gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
}
