package assignmenthttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"assignment_service/internal/ctxdata"
	"assignment_service/internal/domain"
	"assignment_service/pkg/logger"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func NewLoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID, err := uuid.NewV7()
			if err != nil {
				traceID = uuid.New()
			}

			ctx := ctxdata.WithTraceID(r.Context(), traceID.String())
			r = r.WithContext(ctx)
			w.Header().Set("X-Trace-Id", traceID.String())

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			log.Info("request completed",
				zap.String("trace_id", traceID.String()),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type identityClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// NewAuthMiddleware verifies the bearer token issued by the identity
// service and stores the resolved {id, role} once. Handlers read it back
// and pass it by value; nothing downstream mutates the request.
func NewAuthMiddleware(tokenSecret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				log.Info("no authorization header", zap.String("path", r.URL.Path))
				writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "access token required")
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims := &identityClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(tokenSecret), nil
			})
			if err != nil || !token.Valid {
				log.Info("invalid token", zap.String("path", r.URL.Path), zap.Error(err))
				writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "invalid or expired token")
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "invalid token subject")
				return
			}

			role := domain.Role(claims.Role)
			if !role.IsValid() {
				writeErrorJSON(w, http.StatusForbidden, codeForbidden, "unknown role")
				return
			}

			ctx := ctxdata.WithAuth(r.Context(), ctxdata.Auth{UserID: userID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
