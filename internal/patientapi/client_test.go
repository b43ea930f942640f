// internal/patientapi/client_test.go
//
// Unit-tests for the creation client against httptest servers.
//
// Run: go test ./internal/patientapi -v

package patientapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yanizio/intake/internal/intake"
)

var payload = intake.Payload{
	FirstName: "Ada",
	LastName:  "Lovelace",
	DOB:       "1990-12-10",
	Email:     "ada@example.com",
}

func TestCreate_Success(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/patients" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if k := r.Header.Get("Idempotency-Key"); k != "attempt-1" {
			t.Errorf("Idempotency-Key = %q", k)
		}
		if a := r.Header.Get("Authorization"); a != "Bearer t0k" {
			t.Errorf("Authorization = %q", a)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1/", WithHeader("Authorization", "Bearer t0k"))
	ctx := intake.WithAttemptID(context.Background(), "attempt-1")

	ref, err := c.Create(ctx, payload)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if ref.ID != "abc" {
		t.Fatalf("ref = %#v", ref)
	}

	want := map[string]any{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"dob":       "1990-12-10",
		"email":     "ada@example.com",
	}
	if len(gotBody) != len(want) {
		t.Fatalf("body keys = %v, want %v", gotBody, want)
	}
	for k, v := range want {
		if gotBody[k] != v {
			t.Errorf("body[%s] = %v, want %v", k, gotBody[k], v)
		}
	}
}

func TestCreate_NonSuccessStatusIsHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"json error body", http.StatusUnprocessableEntity, `{"errors":[{"field":"email"}]}`},
		{"html error body", http.StatusBadGateway, `<html>bad gateway</html>`},
		{"empty body", http.StatusInternalServerError, ``},
		{"json success shape", http.StatusConflict, `{"id":"looks-fine"}`},
		{"redirect", http.StatusNotModified, ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).Create(context.Background(), payload)

			var he *intake.HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("err = %T %v, want *intake.HTTPError", err, err)
			}
			if he.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", he.StatusCode, tc.status)
			}
			if string(he.RawBody) != tc.body {
				t.Errorf("raw body = %q, want %q", he.RawBody, tc.body)
			}
		})
	}
}

func TestCreate_UndecodableSuccessIsDecodeError(t *testing.T) {
	for _, body := range []string{`not json`, `{"id":""}`, `{}`, `[]`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(body))
		}))

		ref, err := New(srv.URL).Create(context.Background(), payload)
		srv.Close()

		var de *intake.DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("body %q: err = %T %v, want *intake.DecodeError", body, err, err)
		}
		if ref.ID != "" {
			t.Errorf("body %q: ref leaked %q", body, ref.ID)
		}
	}
}

func TestCreate_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithTimeout(50*time.Millisecond)).Create(context.Background(), payload)

	var ne *intake.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %T %v, want *intake.NetworkError", err, err)
	}
	if got := intake.SafeMessage(err); got != intake.MsgNetwork {
		t.Errorf("SafeMessage = %q", got)
	}
}

func TestCreate_ConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Create(context.Background(), payload)

	var ne *intake.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %T %v, want *intake.NetworkError", err, err)
	}
}

func TestCreate_RedirectIsHTTPError(t *testing.T) {
	for _, status := range []int{http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect, http.StatusPermanentRedirect} {
		var followed bool
		mux := http.NewServeMux()
		mux.HandleFunc("/patients", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/elsewhere", status)
		})
		mux.HandleFunc("/elsewhere", func(w http.ResponseWriter, _ *http.Request) {
			followed = true
			_, _ = w.Write([]byte(`{"id":"ghost"}`))
		})
		srv := httptest.NewServer(mux)

		shared := &http.Client{}
		ref, err := New(srv.URL, WithHTTPClient(shared)).Create(context.Background(), payload)
		srv.Close()

		var he *intake.HTTPError
		if !errors.As(err, &he) || he.StatusCode != status {
			t.Fatalf("status %d: err = %T %v, want *intake.HTTPError", status, err, err)
		}
		if ref.ID != "" || followed {
			t.Fatalf("status %d: redirect followed, ref = %q", status, ref.ID)
		}
	}
}

func TestOptions_DoNotMutateCallerClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c := New("http://patients.invalid", WithHTTPClient(shared), WithTimeout(time.Second))

	if shared.Timeout != time.Minute || shared.CheckRedirect != nil {
		t.Fatalf("caller client modified: timeout=%v redirect=%v", shared.Timeout, shared.CheckRedirect != nil)
	}
	if c.http == shared || c.http.Timeout != time.Second {
		t.Fatalf("client not copied: timeout=%v", c.http.Timeout)
	}

	c = New("http://patients.invalid", WithHTTPClient(nil), WithTimeout(time.Second))
	if c.http == nil || c.http.Timeout != time.Second {
		t.Fatal("nil client not ignored")
	}
}
