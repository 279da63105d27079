package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{name: "no keys disables auth", keys: nil, path: "/search", want: http.StatusOK},
		{name: "blank keys disable auth", keys: []string{"", ""}, path: "/search", want: http.StatusOK},
		{name: "missing header", keys: []string{"secret"}, path: "/search", want: http.StatusUnauthorized},
		{name: "basic scheme", keys: []string{"secret"}, path: "/search",
			header: "Basic dXNlcjpwYXNz", want: http.StatusUnauthorized},
		{name: "wrong token", keys: []string{"secret"}, path: "/search",
			header: "Bearer wrong", want: http.StatusUnauthorized},
		{name: "valid token", keys: []string{"secret"}, path: "/search/recent",
			header: "Bearer secret", want: http.StatusOK},
		{name: "second key", keys: []string{"key1", "key2"}, path: "/assistant/context",
			header: "Bearer key2", want: http.StatusOK},
		{name: "health exempt", keys: []string{"secret"}, path: "/health", want: http.StatusOK},
		{name: "metrics exempt", keys: []string{"secret"}, path: "/metrics", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(okHandler())

			req := httptest.NewRequest(http.MethodPost, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			var errResp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != codeUnauthorized {
				t.Errorf("error code: got %s, want %s", errResp.Code, codeUnauthorized)
			}
		})
	}
}
