package tweet

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidate_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	v := NewValidator(nil, nil)
	if err := v.Validate(srv.URL + "/alice/status/123"); err != nil {
		t.Errorf("Validate(200) = %v, want nil", err)
	}
}

func TestValidate_Protected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://twitter.com/account/login?protected_redirect=true")
		w.WriteHeader(302)
	}))
	defer srv.Close()

	v := NewValidator(nil, nil)
	err := v.Validate(srv.URL + "/alice/status/123")
	if err == nil {
		t.Fatal("expected unreachable error for protected redirect")
	}
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnreachableError, got %T", err)
	}
	if ue.Reason != ReasonProtected {
		t.Errorf("reason = %q, want %q", ue.Reason, ReasonProtected)
	}
}

func TestValidate_OtherRedirectIsOK(t *testing.T) {
	tests := []struct {
		name     string
		location string
	}{
		{"different query", "https://twitter.com/alice?lang=en"},
		{"protected plus extra", "https://twitter.com/alice?protected_redirect=true&x=1"},
		{"no query", "https://twitter.com/alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", tt.location)
				w.WriteHeader(301)
			}))
			defer srv.Close()

			v := NewValidator(nil, nil)
			if err := v.Validate(srv.URL); err != nil {
				t.Errorf("Validate = %v, want nil", err)
			}
		})
	}
}

func TestValidate_RedirectNotFollowed(t *testing.T) {
	followed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/next" {
			followed = true
			w.WriteHeader(200)
			return
		}
		w.Header().Set("Location", "/next")
		w.WriteHeader(302)
	}))
	defer srv.Close()

	v := NewValidator(nil, nil)
	if err := v.Validate(srv.URL); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
	if followed {
		t.Error("validator followed a redirect; it must not")
	}
}

func TestValidate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	v := NewValidator(nil, nil)
	err := v.Validate(url)
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnreachableError, got %v", err)
	}
	if ue.Reason != ReasonNetworkError {
		t.Errorf("reason = %q, want %q", ue.Reason, ReasonNetworkError)
	}
}
