package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserMiddleware resolves the calling user. Single-user deployments get
// the default identity; multi-user setups pass X-User-ID from the
// gateway that did the real authentication.
func UserMiddleware(defaultUserID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = defaultUserID
		}
		c.Set("userID", userID)
		c.Next()
	}
}

// HealthCheck reports readiness of the backing stores.
type HealthCheck func() error

// RegisterRoutes wires all routes onto the engine.
func RegisterRoutes(router *gin.Engine, a *API, health HealthCheck, defaultUserID string) {
	router.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(UserMiddleware(defaultUserID))
	{
		v1.POST("/chat", a.ChatHandler)

		tasks := v1.Group("/tasks")
		{
			tasks.POST("", a.SubmitTaskHandler)
			tasks.GET("", a.ListTasksHandler)
			tasks.GET("/:id", a.GetTaskHandler)
			tasks.DELETE("/:id", a.CancelTaskHandler)
		}
	}
}
