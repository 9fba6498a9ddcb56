package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openmerit/registry-api/internal/records"
	"go.uber.org/zap"
)

var errMissingRecordsService = errors.New("records service dependency required")

// Dependencies wires the HTTP surface to the core service.
type Dependencies struct {
	RecordsService *records.Service
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewHTTPHandler assembles the gin router for the registry API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.RecordsService == nil {
		return nil, errMissingRecordsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		records: deps.RecordsService,
		logger:  logger,
	}

	router.GET("/healthz", handleHealth)

	api := router.Group("/api")
	api.POST("/records/submit", handler.handleSubmit)
	api.GET("/records", handler.handleList)
	api.GET("/records/stats", handler.handleStats)
	api.GET("/records/export", handler.handleExport)
	api.DELETE("/records/:id", handler.handleDelete)

	return router, nil
}

type httpHandler struct {
	records *records.Service
	logger  *zap.Logger
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// respondData writes the success envelope.
func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// respondServiceError maps the failure kind onto a status code and writes the
// error envelope.
func respondServiceError(c *gin.Context, err error) {
	kind := records.KindOf(err)
	c.JSON(statusForKind(kind), gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    string(kind),
	})
}

func respondInvalidRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
		"code":    string(records.KindValidation),
	})
}

func statusForKind(kind records.Kind) int {
	switch kind {
	case records.KindValidation:
		return http.StatusBadRequest
	case records.KindAuth:
		return http.StatusUnauthorized
	case records.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
