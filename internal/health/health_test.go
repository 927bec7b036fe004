package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rep
}

func TestHealthz_AlwaysOK(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rep := decode(t, rec); rep.Status != "ok" {
		t.Errorf("body status = %q, want ok", rep.Status)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyz_AllProbesPass(t *testing.T) {
	h := New(
		Checker{Name: "rules-db", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	rep := decode(t, rec)
	if rep.Checks["rules-db"] != "ok" {
		t.Errorf("rules-db = %q, want ok", rep.Checks["rules-db"])
	}
}

func TestReadyz_FailingProbeReturns503(t *testing.T) {
	h := New(
		Checker{Name: "rules-db", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "other", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	rep := decode(t, rec)
	if rep.Status != "fail" {
		t.Errorf("body status = %q, want fail", rep.Status)
	}
	if !strings.Contains(rep.Checks["rules-db"], "connection refused") {
		t.Errorf("failing probe message = %q", rep.Checks["rules-db"])
	}
	if rep.Checks["other"] != "ok" {
		t.Errorf("passing probe = %q, want ok", rep.Checks["other"])
	}
}

func TestReadyz_ProbeSeesDeadline(t *testing.T) {
	h := New(
		Checker{Name: "deadline", Check: func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("no deadline set")
			}
			return nil
		}},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("probe did not receive a deadline: %s", rec.Body.String())
	}
}

func TestRegister_Routes(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
