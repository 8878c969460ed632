package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries what NewRouter wires.
type RouterConfig struct {
	Handler         *Handler
	Events          *WSHandler
	Tokens          *TokenManager
	Limiter         Limiter
	VerifyPerMinute int
	CORSOrigins     []string
	Logger          *slog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h := cfg.Handler
	api := r.Group("/api")
	api.GET("/certificates/verify/:number",
		RateLimit(cfg.Limiter, log, "certificate_verify", cfg.VerifyPerMinute, time.Minute),
		h.VerifyCertificate)

	authed := api.Group("")
	authed.Use(Authenticate(cfg.Tokens))
	{
		authed.POST("/courses/:courseId/enroll", h.EnrollSelf)
		authed.POST("/courses/:courseId/invites", h.CreateInvite)
		authed.GET("/courses/:courseId/progress", h.CourseProgress)
		authed.POST("/invites/redeem", h.RedeemInvite)
		authed.POST("/lessons/:lessonId/complete", h.CompleteLesson)
		authed.POST("/quizzes/:quizId/attempts", h.StartAttempt)
		authed.POST("/attempts/:attemptId/submit", h.SubmitAttempt)
		authed.GET("/certificates/mine", h.MyCertificates)
	}

	admin := authed.Group("/admin")
	{
		admin.POST("/enrollments/bulk", h.BulkEnroll)
		admin.POST("/certificates/:id/revoke", h.RevokeCertificate)
	}

	if cfg.Events != nil {
		r.GET("/ws/events", Authenticate(cfg.Tokens), cfg.Events.ServeWS)
	}
	return r
}
