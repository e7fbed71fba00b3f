package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	applogger "github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// contextKey scopes context values set by this package.
type contextKey string

const loggerKey contextKey = "logger"

// requestIDHeader carries the client-supplied or generated request ID on
// both the request and the response.
const requestIDHeader = "X-Request-ID"

// Middleware wraps an http.Handler and returns a new http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares so the first argument becomes the outermost
// handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// RequestID accepts a client request ID or generates one, then echoes it
// on the response and stamps the request context so every log line
// downstream, including coordinator and store logs, carries it.
func RequestID(baseLogger *applogger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(requestIDHeader, requestID)

			ctx := applogger.WithRequestID(r.Context(), requestID)
			ctx = context.WithValue(ctx, loggerKey, baseLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID stamped by the RequestID middleware,
// or "" when called outside a request.
func GetRequestID(ctx context.Context) string {
	return applogger.GetRequestID(ctx)
}

// GetLogger returns the API logger carried by the request context. The
// fallback only triggers in tests that call handlers without the
// middleware chain.
func GetLogger(ctx context.Context) *applogger.Logger {
	if l, ok := ctx.Value(loggerKey).(*applogger.Logger); ok {
		return l
	}
	return applogger.NewDevelopment("fallback")
}

// Logging logs the start and outcome of every request. The outcome line
// picks its level from the response status.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := GetLogger(r.Context())

			log.WithContext(r.Context()).Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log.HTTPRequest(r.Context(), r.Method, r.URL.Path, wrapped.statusCode, time.Since(start),
				slog.Int("response_bytes", wrapped.bytesWritten))
		})
	}
}

// responseWriter captures the status code and body size of a response.
// The first WriteHeader wins, matching net/http semantics.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.statusCode = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// CORS answers preflight requests and attaches CORS headers for allowed
// origins. Registration clients are headless, but the health and device
// listing endpoints are also read by browser dashboards.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if originAllowed(allowedOrigins, origin) {
				switch {
				case origin != "":
					w.Header().Set("Access-Control-Allow-Origin", origin)
				case len(allowedOrigins) > 0 && allowedOrigins[0] == "*":
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
				w.Header().Set("Access-Control-Expose-Headers", requestIDHeader+", Retry-After")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}

// Recovery converts a handler panic into a logged internal error response
// so one bad request cannot take the server down.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				panicErr := apperrors.NewSystemError(
					apperrors.ErrCodeInternal,
					"panic recovered",
					false,
					fmt.Errorf("%v", rec),
				).WithMetadata("path", r.URL.Path).
					WithMetadata("method", r.Method)

				GetLogger(r.Context()).ErrorCtx(r.Context(), "panic recovered", panicErr)
				WriteErrorResponse(w, r, panicErr)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
