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

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		path       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{name: "disabled", path: "/suggest?q=MH", wantStatus: http.StatusOK},
		{name: "disabled by blank keys", keys: []string{""}, path: "/suggest", wantStatus: http.StatusOK},
		{name: "valid", keys: []string{"secret"}, path: "/suggest", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "second key", keys: []string{"ops", "viewer"}, path: "/stats", header: "Bearer viewer", wantStatus: http.StatusOK},
		{name: "missing header", keys: []string{"secret"}, path: "/suggest", wantStatus: http.StatusUnauthorized,
			wantMsg: "missing authorization header"},
		{name: "basic scheme", keys: []string{"secret"}, path: "/suggest", header: "Basic c2VjcmV0", wantStatus: http.StatusUnauthorized,
			wantMsg: "authorization header must use Bearer scheme"},
		{name: "wrong key", keys: []string{"secret"}, path: "/select", header: "Bearer secre", wantStatus: http.StatusUnauthorized,
			wantMsg: "invalid api key"},
		{name: "health exempt", keys: []string{"secret"}, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics exempt", keys: []string{"secret"}, path: "/metrics", wantStatus: http.StatusOK},
		{name: "stream query token", keys: []string{"secret"}, path: "/warmup/progress?access_token=secret", wantStatus: http.StatusOK},
		{name: "stream wrong query token", keys: []string{"secret"}, path: "/warmup/progress?access_token=nope",
			wantStatus: http.StatusUnauthorized, wantMsg: "invalid api key"},
		{name: "query token only on streams", keys: []string{"secret"}, path: "/suggest?access_token=secret",
			wantStatus: http.StatusUnauthorized, wantMsg: "missing authorization header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(okHandler())

			req := httptest.NewRequest("GET", tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantMsg == "" {
				return
			}
			var resp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != codeUnauthorized || resp.Message != tt.wantMsg {
				t.Errorf("error = %+v, want %s/%q", resp, codeUnauthorized, tt.wantMsg)
			}
		})
	}
}
