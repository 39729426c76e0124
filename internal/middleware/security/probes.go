package security

import (
	"net/http"
	"strings"
	"sync/atomic"

	applog "talky/internal/log"
)

var probePatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"etc/passwd", "cmd.exe", "<script", "union select",
}

var blockedMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}

const maxURLLength = 2048

// ProbeFilter answers scanner traffic with 404 before it reaches the API.
type ProbeFilter struct {
	clientIP func(*http.Request) string
	blocked  atomic.Int64
}

func NewProbeFilter(clientIP func(*http.Request) string) *ProbeFilter {
	return &ProbeFilter{clientIP: clientIP}
}

// IsProbe reports whether r looks like path traversal or a known scanner target.
func IsProbe(r *http.Request) bool {
	if blockedMethods[r.Method] {
		return true
	}
	if len(r.URL.String()) > maxURLLength {
		return true
	}
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range probePatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return true
		}
	}
	return false
}

func (f *ProbeFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsProbe(r) {
			f.blocked.Add(1)
			ip := ""
			if f.clientIP != nil {
				ip = f.clientIP(r)
			}
			applog.FromContext(r.Context()).Warn("Blocked probe request",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, ip)
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Blocked returns how many requests were rejected.
func (f *ProbeFilter) Blocked() int64 {
	return f.blocked.Load()
}
