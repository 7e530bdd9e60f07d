package http

import (
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/internal/core/services"
	"dealerhub/internal/infrastructure/middleware"
	"dealerhub/pkg/circuitbreaker"
	"dealerhub/pkg/errors"
	"dealerhub/pkg/utils"
	"dealerhub/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxRequestBytes = 1 << 20

// Resource is one backend collection reachable under /api/v1. An empty
// Write permission makes the resource read-only.
type Resource struct {
	Name  string
	Read  domain.Permission
	Write domain.Permission
}

var Resources = []Resource{
	{Name: "vehicles", Read: domain.PermVehiclesRead, Write: domain.PermVehiclesWrite},
	{Name: "orders", Read: domain.PermOrdersRead, Write: domain.PermOrdersWrite},
	{Name: "payments", Read: domain.PermPaymentsRead, Write: domain.PermPaymentsWrite},
	{Name: "test-drives", Read: domain.PermTestDrivesRead, Write: domain.PermTestDrivesWrite},
	{Name: "distributions", Read: domain.PermDistributionsRead, Write: domain.PermDistributionsWrite},
	{Name: "dealers", Read: domain.PermDealersManage, Write: domain.PermDealersManage},
	{Name: "users", Read: domain.PermUsersManage, Write: domain.PermUsersManage},
	{Name: "reports", Read: domain.PermReportsRead},
}

var (
	readMethods  = []string{http.MethodGet, http.MethodHead}
	writeMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

	forwardRequestHeaders = []string{
		"Accept", "Accept-Language", "Content-Type",
		"If-Match", "If-None-Match", "If-Modified-Since",
		middleware.RequestIDHeader,
	}
	forwardResponseHeaders = []string{
		"Cache-Control", "ETag", "Last-Modified", "Location", "X-Total-Count",
	}
)

// UpstreamMetrics observes every forwarded call. status is 0 when no
// response arrived.
type UpstreamMetrics interface {
	RecordUpstream(resource string, status int, duration time.Duration)
}

// ResourceHandler forwards data requests to the backend API with the
// session's upstream token. The portal never interprets the payloads.
type ResourceHandler struct {
	gateway  ports.ResourceGateway
	sessions ports.SessionService
	guard    *services.RouteGuard
	cookie   middleware.CookieConfig
	guardLog ports.GuardMetrics
	metrics  UpstreamMetrics
	logger   *zap.SugaredLogger
}

func NewResourceHandler(
	gateway ports.ResourceGateway,
	sessions ports.SessionService,
	guard *services.RouteGuard,
	cookie middleware.CookieConfig,
	guardMetrics ports.GuardMetrics,
	metrics UpstreamMetrics,
	logger *zap.SugaredLogger,
) *ResourceHandler {
	return &ResourceHandler{
		gateway:  gateway,
		sessions: sessions,
		guard:    guard,
		cookie:   cookie,
		guardLog: guardMetrics,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *ResourceHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	for _, res := range Resources {
		forward := h.forward(res.Name)
		readGuard := middleware.Guard(h.guard, "api:"+res.Name,
			domain.RequirePermissions(res.Read), h.guardLog)
		for _, method := range readMethods {
			api.Handle(method, "/"+res.Name, readGuard, forward)
			api.Handle(method, "/"+res.Name+"/*path", readGuard, forward)
		}

		if res.Write == "" {
			continue
		}
		writeGuard := middleware.Guard(h.guard, "api:"+res.Name,
			domain.RequirePermissions(res.Write), h.guardLog)
		for _, method := range writeMethods {
			api.Handle(method, "/"+res.Name, writeGuard, forward)
			api.Handle(method, "/"+res.Name+"/*path", writeGuard, forward)
		}
	}
}

func (h *ResourceHandler) forward(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := middleware.SessionFromContext(c)
		if !ok {
			c.Error(errors.NewUnauthorizedError("not signed in"))
			return
		}

		sub := c.Param("path")
		for _, segment := range strings.Split(strings.Trim(sub, "/"), "/") {
			if segment == "" {
				continue
			}
			if err := validation.ValidateResourceID(segment); err != nil {
				c.Error(errors.NewInvalidInputError(err.Error()).WithContext("segment", segment))
				return
			}
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes+1))
		if err != nil {
			c.Error(errors.NewInvalidInputError("failed to read request body"))
			return
		}
		if len(body) > maxRequestBytes {
			c.Error(errors.NewAppError(errors.ErrCodeInvalidInput, "request body too large", http.StatusRequestEntityTooLarge))
			return
		}

		req := &ports.UpstreamRequest{
			Method:   c.Request.Method,
			Path:     "/" + resource + strings.TrimRight(sub, "/"),
			RawQuery: c.Request.URL.RawQuery,
			Header:   pickHeaders(c.Request.Header, forwardRequestHeaders),
			Body:     body,
			Token:    session.UpstreamToken,
		}

		start := time.Now()
		resp, err := h.gateway.Forward(c.Request.Context(), req)
		if h.metrics != nil {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			h.metrics.RecordUpstream(resource, status, time.Since(start))
		}

		switch {
		case stderrors.Is(err, circuitbreaker.ErrOpen):
			c.Error(errors.WrapError(err, errors.ErrCodeServiceUnavailable,
				"backend temporarily unavailable", http.StatusServiceUnavailable))
			return
		case stderrors.Is(err, domain.ErrResponseTooLarge):
			c.Error(errors.WrapError(err, errors.ErrCodeBadGateway,
				"backend response too large", http.StatusBadGateway))
			return
		case err != nil:
			c.Error(errors.WrapError(err, errors.ErrCodeBadGateway,
				"backend unreachable", http.StatusBadGateway))
			return
		}

		if resp.StatusCode == http.StatusUnauthorized {
			h.rejectSession(c, session)
			return
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			h.logger.Warnw("backend server error",
				"resource", resource,
				"method", req.Method,
				"status", resp.StatusCode,
				"body", utils.LogSnippet(string(resp.Body), 256),
			)
		}

		for _, name := range forwardResponseHeaders {
			if v := resp.Header.Get(name); v != "" {
				c.Header(name, v)
			}
		}
		c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), resp.Body)
	}
}

// rejectSession closes a session the backend no longer honours and sends
// the client back to login.
func (h *ResourceHandler) rejectSession(c *gin.Context, session *domain.Session) {
	if err := h.sessions.Invalidate(c.Request.Context(), session.ID); err != nil {
		h.logger.Errorw("failed to invalidate session rejected by backend",
			"session_id", session.ID,
			"error", err,
		)
	}
	middleware.ClearSessionCookie(c, h.cookie)

	c.Error(errors.NewSessionExpiredError().
		WithContext("redirect", h.guard.LoginPath()+"?next="+url.QueryEscape(c.Request.URL.RequestURI())))
}

func pickHeaders(src http.Header, names []string) http.Header {
	out := make(http.Header, len(names))
	for _, name := range names {
		if values := src.Values(name); len(values) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
	return out
}
