package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestServerEndpoints(t *testing.T) {
	SessionStarts.WithLabelValues("success").Inc()

	srv := NewServer("127.0.0.1:0", zerolog.Nop())

	tests := []struct {
		path     string
		contains string
	}{
		{"/health", "OK"},
		{"/metrics", "wellcore_session_starts_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("GET %s status = %d", tt.path, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("GET %s body missing %q", tt.path, tt.contains)
			}
		})
	}
}
