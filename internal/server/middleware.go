package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// quietPaths are polled by infrastructure and only logged at debug.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		entry := s.logger.WithFields(logrus.Fields{
			"method":        r.Method,
			"path":          r.URL.Path,
			"status":        rw.statusCode,
			"request_bytes": r.ContentLength,
			"bytes":         rw.written,
			"duration_ms":   time.Since(started).Milliseconds(),
			"remote_addr":   r.RemoteAddr,
		})

		switch {
		case rw.statusCode >= http.StatusInternalServerError:
			entry.Error("http request")
		case rw.statusCode >= http.StatusBadRequest:
			entry.Warn("http request")
		case quietPaths[r.URL.Path]:
			entry.Debug("http request")
		default:
			entry.Info("http request")
		}
	})
}

// StripTrailingSlash routes "/api/reports/" like "/api/reports". The path is
// rewritten in place, devices do not follow redirects on POST.
func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path := r.URL.Path; len(path) > 1 && strings.HasSuffix(path, "/") {
			r.URL.Path = strings.TrimRight(path, "/")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
			r.URL.RawPath = ""
		}

		next.ServeHTTP(w, r)
	})
}
