// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package httpapi exposes registration over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/enrollkit/enroll/internal/registration"
	"github.com/enrollkit/enroll/pkg/errutil"
)

// RegistrationPath is the route that creates accounts.
const RegistrationPath = "/v1/registrations"

// Registerer is the registration use case behind the API.
type Registerer interface {
	RegisterUser(ctx context.Context, in registration.Input) (*registration.Result, error)
}

// RequestObserver records served requests. observability.Metrics implements it.
type RequestObserver interface {
	ObserveRequest(route string, code int, elapsed time.Duration)
}

// ErrorBody is the JSON envelope for every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Handler serves the registration API.
type Handler struct {
	registerer Registerer
	logger     *slog.Logger
	observer   RequestObserver
}

// New creates a Handler. observer may be nil.
func New(registerer Registerer, logger *slog.Logger, observer RequestObserver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registerer: registerer, logger: logger, observer: observer}
}

// Router builds the gin engine with recovery, request logging and metrics.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.accessLog())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.POST("/registrations", h.register)
	return router
}

func (h *Handler) register(c *gin.Context) {
	var in registration.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.DebugContext(c.Request.Context(), "rejecting malformed registration body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Code:    "REQUEST_INVALID_BODY",
			Message: "request body must be a JSON object",
		}})
		return
	}

	result, err := h.registerer.RegisterUser(c.Request.Context(), in)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			errutil.LogError(h.logger, "registration request failed", err)
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// errorResponse maps a RegisterUser error to a status and client-safe body.
func errorResponse(err error) (int, ErrorBody) {
	code := errutil.Code(err)
	switch {
	case registration.IsValidation(err):
		return http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Code:    code,
			Field:   registration.ValidationField(err),
			Message: strings.TrimSuffix(err.Error(), ": "+registration.ErrValidation.Error()),
		}}
	case registration.IsDuplicateEmail(err):
		return http.StatusConflict, ErrorBody{Error: ErrorDetail{
			Code:    registration.CodeDuplicateEmail,
			Field:   registration.FieldEmail,
			Message: "an account with this email already exists",
		}}
	default:
		if code == "" {
			code = registration.CodeFailed
		}
		return http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
			Code:    code,
			Message: "registration could not be completed",
		}}
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		if h.observer != nil {
			h.observer.ObserveRequest(route, status, elapsed)
		}
		h.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"client_ip", c.ClientIP(),
		)
	}
}
