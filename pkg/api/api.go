// Package api exposes the document and onboarding services over HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxidocs/pkg/auth"
	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/metrics"
	"taxidocs/pkg/models"
	"taxidocs/service"
)

const actorKey = "actor"

type Handler struct {
	svc    service.IServiceManager
	secret []byte
	log    logger.ILogger
	now    func() time.Time
}

func NewRouter(svc service.IServiceManager, secret []byte, log logger.ILogger) *gin.Engine {
	h := &Handler{svc: svc, secret: secret, log: log, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(metrics.PrometheusMiddleware())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(h.authenticate())
	{
		api.POST("/drivers", h.registerDriver)
		api.GET("/drivers/:id", h.getDriver)
		api.GET("/drivers/:id/documents", h.listDocuments)
		api.POST("/drivers/:id/uploads", h.presignUpload)

		api.POST("/documents", h.submitDocument)
		api.GET("/documents/:id", h.getDocument)
		api.POST("/documents/:id/resubmit", h.resubmitDocument)
		api.POST("/documents/:id/approve", h.approveDocument)
		api.POST("/documents/:id/reject", h.rejectDocument)
		api.POST("/documents/:id/archive", h.archiveDocument)
		api.GET("/documents/:id/versions", h.listVersions)
		api.GET("/documents/:id/versions/:index", h.documentAsOf)
		api.GET("/documents/:id/file", h.fileURL)
		api.GET("/documents/:id/reminder", h.reminderAvailable)
		api.POST("/documents/:id/reminder", h.sendReminder)

		api.GET("/onboarding/:id", h.getStage)
		api.PUT("/onboarding/:id/driver-info", h.submitDriverInfo)
		api.POST("/onboarding/:id/driver-documents", h.submitDriverDocuments)
		api.PUT("/onboarding/:id/vehicle", h.submitVehicleInfo)
		api.PUT("/onboarding/:id/bank", h.submitBankDocuments)
		api.POST("/onboarding/:id/advance", h.advanceStage)
	}
	return r
}

// NewServer wraps the router for graceful shutdown.
func NewServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.FromHeader(c.GetHeader("Authorization"))
		if err == nil {
			var actor models.Actor
			actor, err = auth.ParseToken(token, h.secret)
			if err == nil {
				c.Set(actorKey, actor)
				c.Next()
				return
			}
		}
		h.log.Debug("rejected request", logger.String("path", c.Request.URL.Path), logger.Error(err))
		h.writeError(c, err)
		c.Abort()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	v, _ := c.Get(actorKey)
	a, _ := v.(models.Actor)
	return a
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch errs.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "invalid_category":
		return http.StatusBadRequest
	case "invalid_transition":
		return http.StatusConflict
	case "prerequisite_missing":
		return http.StatusPreconditionFailed
	case "validation_error":
		return http.StatusUnprocessableEntity
	case "unauthorized":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "storage_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			logger.String("path", c.FullPath()),
			logger.String("request_id", c.GetString("request_id")),
			logger.Error(err),
		)
		msg = "internal error"
	}
	c.JSON(status, errorResponse{Error: msg, Kind: errs.Kind(err), Retryable: errs.Retryable(err)})
}
