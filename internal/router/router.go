package router

import (
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/lourdes7u7/analisisAudio/internal/config"
	"github.com/lourdes7u7/analisisAudio/internal/handlers"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitExceeded(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again later.")
}

// Setup builds the HTTP surface: report lifecycle endpoints, the analyze
// upload endpoint, and the static game front end.
func Setup(log *zap.Logger, reportHandler *handlers.ReportHandler, analyzeHandler *handlers.AnalyzeHandler) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	})

	// Uploads trigger external transcription calls, so /analyze gets a
	// per-IP limiter.
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 30,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: rateLimitExceeded,
		KeyFunc:      keyFunc,
	})

	router.Static("/static", config.Conf.Server.StaticDir)

	router.POST("/start", reportHandler.Start)
	router.POST("/analyze", limiter, analyzeHandler.Analyze)
	router.GET("/report/:reportId", reportHandler.Get)
	router.GET("/reports", reportHandler.List)
	router.POST("/finalize/:reportId", reportHandler.Finalize)

	return router
}
