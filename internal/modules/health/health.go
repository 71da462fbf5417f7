package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	pkgredis "github.com/sidestreets/core/internal/pkg/redis"
	"gorm.io/gorm"
)

type Handler struct {
	db  *gorm.DB
	rdb *pkgredis.Client
}

func NewHandler(db *gorm.DB, rdb *pkgredis.Client) *Handler {
	return &Handler{db: db, rdb: rdb}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/health", h.check)
}

// GET /api/health
func (h *Handler) check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "up"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "down"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "down"
	}

	redisStatus := "up"
	if err := h.rdb.Ping(ctx); err != nil {
		redisStatus = "down"
	}

	status := "ok"
	code := http.StatusOK
	if dbStatus != "up" || redisStatus != "up" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"db":     dbStatus,
		"redis":  redisStatus,
	})
}
