package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/services"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports the state of the database and, when configured, Redis.
type HealthHandler struct {
	db        *gorm.DB
	redis     *redis.Client
	mailQueue services.MailQueue
}

// NewHealthHandler builds the handler. rdb and mailQueue may be nil.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, mailQueue services.MailQueue) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, mailQueue: mailQueue}
}

// CheckHealth returns 200 when every subsystem answers and 503 otherwise.
// GET /api/v1/health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	overall := "healthy"

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "error: " + err.Error()
			overall = "unhealthy"
		}
	}

	queueMode := "sync"
	if h.mailQueue != nil && h.mailQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": "soundvault",
		"components": gin.H{
			"database":   dbStatus,
			"redis":      redisStatus,
			"queue_mode": queueMode,
		},
	})
}
