package kiosk

import (
	"net/http"

	"faceattend/internal/httpmiddleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the shell's middleware.
type RouterConfig struct {
	RateLimitPerMin int
	Gatherer        prometheus.Gatherer
}

// NewRouter builds the gin engine serving the shell.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics", "/v1/state", "/v1/notices"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          86400,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewClientLimiter(cfg.RateLimitPerMin).GinMiddleware())

	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	{
		v1.GET("/state", h.State)
		v1.PUT("/mode", h.SetMode)
		v1.PUT("/employee-name", h.SetEmployeeName)

		v1.POST("/capture/camera", h.CaptureCamera)
		v1.POST("/capture/gallery", h.PickGallery)
		v1.POST("/permission", h.RequestPermission)

		v1.GET("/notices", h.Notices)
		v1.GET("/employees", h.Employees)
		v1.GET("/attendance/:name", h.AttendanceHistory)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
