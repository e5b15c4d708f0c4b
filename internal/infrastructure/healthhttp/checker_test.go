package healthhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

func TestChecker_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Checker{}
	res, err := c.Check(context.Background(), domain.HealthProbe{
		Name: domain.CheckHealthEndpoint,
		URL:  srv.URL + "/healthz",
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Healthy {
		t.Errorf("Healthy = false: %s", res.Detail)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.ResponseTime <= 0 {
		t.Error("ResponseTime must be measured")
	}
}

func TestChecker_UnhealthyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Checker{}
	res, err := c.Check(context.Background(), domain.HealthProbe{
		Name: domain.CheckHealthEndpoint,
		URL:  srv.URL,
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Healthy {
		t.Error("503 must be unhealthy")
	}
	if !strings.Contains(res.Detail, "503") {
		t.Errorf("Detail = %q", res.Detail)
	}
}

func TestChecker_LatencyBudgetExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Checker{}
	res, err := c.Check(context.Background(), domain.HealthProbe{
		Name:       domain.CheckResponseTime,
		URL:        srv.URL,
		MaxLatency: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Healthy {
		t.Error("a response past the latency budget must be unhealthy")
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want the real status preserved", res.StatusCode)
	}
}

func TestChecker_ConnectionRefused(t *testing.T) {
	c := &Checker{}
	_, err := c.Check(context.Background(), domain.HealthProbe{
		Name: domain.CheckHealthEndpoint,
		URL:  "http://127.0.0.1:1/healthz",
	})
	if err == nil {
		t.Fatal("unreachable endpoint must return an error")
	}
}
