package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey int

const (
	requestInfoKey ctxKey = iota
	actorKey
)

const requestIDHeader = "X-Request-ID"

// requestInfo is shared by the access log and the auth wrapper.
type requestInfo struct {
	id     string
	userID int64
}

func requestIDFrom(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

// ActorFrom returns the authenticated caller stored by the auth wrapper.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware assigns a request id, logs the request and observes its latency.
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		info := &requestInfo{id: id}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.ObserveHTTP(route, recorder.status, dur.Seconds())

		event := s.logger.Info()
		if recorder.status >= http.StatusInternalServerError {
			event = s.logger.Error()
		} else if recorder.status >= http.StatusBadRequest {
			event = s.logger.Warn()
		}
		if info.userID != 0 {
			event = event.Int64("user_id", info.userID)
		}
		event.
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// rateLimitMiddleware rejects clients over the configured rps with 429.
func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit.RPS > 0 && !s.limiter.getLimiter(clientKey(r)).Allow() {
			writeFail(w, http.StatusTooManyRequests, "too_many_requests", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a caller by bearer token, then by remote host.
func clientKey(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authed requires a valid bearer token and, when roles are given, one of them.
func (s *HTTPServer) authed(h http.HandlerFunc, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeFail(w, http.StatusUnauthorized, "unauthorized", "Access denied. No token provided")
			return
		}
		actor, err := s.services.Auth.Authenticate(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if len(roles) > 0 && !hasRole(actor.Role, roles) {
			writeFail(w, http.StatusForbidden, "forbidden", fmt.Sprintf("Access denied. %s role required", strings.Join(roles, " or ")))
			return
		}
		actor.IP = clientIP(r)

		if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
			info.userID = actor.UserID
		}
		r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))

		if !s.auditRequests {
			h(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(recorder, r)
		s.auditRequest(r, actor, recorder.status)
	})
}

// optional attaches the caller when a valid token is present and serves anonymously otherwise.
func (s *HTTPServer) optional(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if actor, err := s.services.Auth.Authenticate(token); err == nil {
				actor.IP = clientIP(r)
				if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
					info.userID = actor.UserID
				}
				r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))
			}
		}
		h(w, r)
	})
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// auditRequest journals "METHOD path - Status: code" for an authenticated call.
func (s *HTTPServer) auditRequest(r *http.Request, actor models.Actor, status int) {
	if s.services.Audit == nil {
		return
	}
	entry := &models.ActivityLog{
		UserID:    actor.UserID,
		Action:    fmt.Sprintf("%s %s - Status: %d", r.Method, r.URL.Path, status),
		IPAddress: actor.IP,
	}
	if err := s.services.Audit.Enqueue(context.WithoutCancel(r.Context()), entry); err != nil {
		s.logger.Warn().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("audit request")
	}
}

func actorOf(r *http.Request) models.Actor {
	actor, _ := ActorFrom(r.Context())
	return actor
}
