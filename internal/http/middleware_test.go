package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/fieldservice/internal/application"
)

type stubSessionValidator struct {
	principal application.Principal
	err       error
	gotToken  string
}

func (s *stubSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	s.gotToken = token
	if s.err != nil {
		return application.Principal{}, s.err
	}
	return s.principal, nil
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		cookie     string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "missing token", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_TOKEN_MISSING"},
		{name: "expired session", token: "tok1", err: application.ErrSessionExpired, wantStatus: http.StatusUnauthorized, wantCode: "AUTH_SESSION_EXPIRED"},
		{name: "revoked session", token: "tok1", err: application.ErrSessionRevoked, wantStatus: http.StatusUnauthorized, wantCode: "AUTH_SESSION_REVOKED"},
		{name: "unknown session", token: "tok1", err: application.ErrNotFound, wantStatus: http.StatusUnauthorized, wantCode: "AUTH_SESSION_UNKNOWN"},
		{name: "valid bearer token", token: "tok1", wantStatus: http.StatusOK},
		{name: "valid cookie token", cookie: "tok2", wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			validator := &stubSessionValidator{
				principal: application.Principal{UserID: "tech1", Role: application.RoleTechnician},
				err:       tc.err,
			}

			var gotPrincipal application.Principal
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPrincipal, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/punches/active", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session_token", Value: tc.cookie})
			}
			rec := httptest.NewRecorder()

			RequireSession(validator, nil)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("Expected %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantCode != "" {
				var resp errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if resp.ErrorCode != tc.wantCode {
					t.Errorf("Expected error code %s, got %s", tc.wantCode, resp.ErrorCode)
				}
				return
			}

			if gotPrincipal.UserID != "tech1" {
				t.Errorf("Expected principal tech1, got %q", gotPrincipal.UserID)
			}
			want := tc.token
			if want == "" {
				want = tc.cookie
			}
			if validator.gotToken != want {
				t.Errorf("Expected validator to receive token %q, got %q", want, validator.gotToken)
			}
		})
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	var sawLogger bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	RequestLogger(nil)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	if !sawLogger {
		t.Error("Expected a request logger on the context")
	}
}
