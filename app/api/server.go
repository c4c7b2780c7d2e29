package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP router with all routes configured.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Campaign provider callback. Authenticated by campaign id knowledge,
	// not the admin key, since the provider cannot send custom headers.
	r.POST("/webhooks/delivery", handler.DeliveryWebhook)

	// Admin endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/collect", handler.APITriggerCollection)
			api.POST("/classify", handler.APITriggerClassification)
			api.POST("/digest", handler.APITriggerDigestBuild)
			api.POST("/digest/send", handler.APISendPendingDigest)
			api.GET("/digest/pending", handler.APIGetPendingDigest)
			api.GET("/digests/:id", handler.APIGetDigest)
			api.GET("/digests/:id/html", handler.APIGetDigestHTML)
			api.POST("/digests/:id/send", handler.APISendDigest)
			api.GET("/jobs", handler.APIListJobs)
		}
		slog.Info("Admin endpoints enabled with authentication")
	} else {
		slog.Warn("Admin endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health":  "/health",
			"stats":   "/stats",
			"webhook": "/webhooks/delivery (POST)",
		}

		if apiAccessKey != "" {
			endpoints["collect"] = "/api/collect (POST, requires X-API-Key header)"
			endpoints["classify"] = "/api/classify (POST, requires X-API-Key header)"
			endpoints["digest"] = "/api/digest (POST, requires X-API-Key header)"
			endpoints["pending"] = "/api/digest/pending (requires X-API-Key header)"
			endpoints["send"] = "/api/digests/<id>/send (POST, requires X-API-Key header)"
			endpoints["jobs"] = "/api/jobs (requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Twin County Digest",
			"description": "Community news collection, classification, and weekly digest delivery",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			c.JSON(401, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(401, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
