package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/awsomestore/storefront/pkg/storefront/eventlog"
	"github.com/awsomestore/storefront/pkg/storefront/orders"
	"github.com/awsomestore/storefront/pkg/storefront/products"
)

const requestIDKey = "request_id"

// RequestID returns the request ID assigned by the middleware.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestIDMiddleware assigns every request an ID, honoring an incoming
// X-Request-ID header, and echoes it on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"request_id", RequestID(c))
	}
}

// NewRouter assembles the HTTP API. Routes are registered explicitly,
// so unsupported methods on known paths get 405 instead of 404.
func NewRouter(productSvc *products.Service, orderSvc *orders.Service, logStore eventlog.Store, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware())
	engine.Use(LoggingMiddleware(logger))
	engine.HandleMethodNotAllowed = true

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	productHandler := NewProductHandler(productSvc)
	engine.GET("/products", productHandler.List)
	engine.POST("/products", productHandler.Create)
	engine.GET("/products/:id", productHandler.Get)
	engine.PUT("/products/:id", productHandler.Update)
	engine.DELETE("/products/:id", productHandler.Delete)

	orderHandler := NewOrderHandler(orderSvc)
	engine.GET("/orders", orderHandler.List)
	engine.POST("/orders", orderHandler.Create)
	engine.DELETE("/orders", orderHandler.Delete)

	eventsHandler := NewEventsHandler(logStore)
	engine.GET("/orders/events", eventsHandler.List)

	return engine
}
