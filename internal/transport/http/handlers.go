package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lms-progress-service/internal/app"
	"lms-progress-service/internal/domain"
)

// Handler exposes the engine's use cases over REST.
type Handler struct {
	engine *app.Engine
	log    *slog.Logger
}

func NewHandler(engine *app.Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, log: log}
}

// POST /api/courses/:courseId/enroll
func (h *Handler) EnrollSelf(c *gin.Context) {
	enrollment, err := h.engine.Enrollments.EnrollSelf(c.Request.Context(), principal(c), c.Param("courseId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"enrollment": enrollment})
}

type redeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// POST /api/invites/redeem
func (h *Handler) RedeemInvite(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	enrollment, err := h.engine.Enrollments.EnrollViaInvite(c.Request.Context(), principal(c), req.Code)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"enrollment": enrollment})
}

// POST /api/courses/:courseId/invites
func (h *Handler) CreateInvite(c *gin.Context) {
	var req app.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	invite, err := h.engine.Invites.Create(c.Request.Context(), principal(c), c.Param("courseId"), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invite": invite})
}

type bulkEnrollRequest struct {
	UserIDs  []string `json:"userIds" binding:"required"`
	CourseID string   `json:"courseId" binding:"required"`
}

// POST /api/admin/enrollments/bulk
func (h *Handler) BulkEnroll(c *gin.Context) {
	var req bulkEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	results, err := h.engine.Enrollments.BulkEnroll(c.Request.Context(), principal(c), req.UserIDs, req.CourseID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// POST /api/lessons/:lessonId/complete
func (h *Handler) CompleteLesson(c *gin.Context) {
	res, err := h.engine.Progress.CompleteLesson(c.Request.Context(), principal(c), c.Param("lessonId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/courses/:courseId/progress
func (h *Handler) CourseProgress(c *gin.Context) {
	view, err := h.engine.Progress.CourseProgress(c.Request.Context(), principal(c), c.Param("courseId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/quizzes/:quizId/attempts
func (h *Handler) StartAttempt(c *gin.Context) {
	started, err := h.engine.Quizzes.StartAttempt(c.Request.Context(), principal(c), c.Param("quizId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	status := http.StatusCreated
	if started.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, started)
}

type submitRequest struct {
	Answers map[string]domain.Answer `json:"answers"`
}

// POST /api/attempts/:attemptId/submit
func (h *Handler) SubmitAttempt(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.engine.Quizzes.SubmitAttempt(c.Request.Context(), principal(c), c.Param("attemptId"), req.Answers)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/certificates/mine
func (h *Handler) MyCertificates(c *gin.Context) {
	certs, err := h.engine.Certificates.Mine(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if certs == nil {
		certs = []domain.Certificate{}
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certs})
}

// GET /api/certificates/verify/:number
func (h *Handler) VerifyCertificate(c *gin.Context) {
	v, err := h.engine.Certificates.Verify(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// POST /api/admin/certificates/:id/revoke
func (h *Handler) RevokeCertificate(c *gin.Context) {
	cert, err := h.engine.Certificates.Revoke(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificate": cert})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
