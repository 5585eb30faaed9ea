package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/server/auth"
)

func (s *Server) withClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithClientInfo(r.Context(), auth.ClientInfo{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// authenticate accepts either a Bearer access token or an X-API-Key header
// and stores the caller's user id in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			userID string
			err    error
		)
		switch h := r.Header.Get("Authorization"); {
		case strings.HasPrefix(h, "Bearer "):
			userID, err = auth.GetUserIDFromToken(strings.TrimPrefix(h, "Bearer "), s.jwtSecret)
		case r.Header.Get(common.APIKeyHeaderName) != "":
			userID, err = s.deps.APIKeys.Authenticate(r.Context(), r.Header.Get(common.APIKeyHeaderName))
		default:
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if err != nil || userID == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

// currentUser returns the id stored by authenticate.
func currentUser(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
