package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fixed(s Status) Check {
	return func(context.Context) ComponentHealth { return ComponentHealth{Status: s} }
}

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Status
		want   Status
	}{
		{"all up", map[string]Status{"corpus": StatusUp, "redis": StatusUp}, StatusUp},
		{"degraded", map[string]Status{"corpus": StatusUp, "redis": StatusDegraded}, StatusDegraded},
		{"down beats degraded", map[string]Status{"corpus": StatusDown, "redis": StatusDegraded}, StatusDown},
		{"no checks", map[string]Status{}, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, s := range tt.checks {
				c.Register(name, fixed(s))
			}
			r := c.Run(context.Background())
			if r.Status != tt.want {
				t.Errorf("status = %s, want %s", r.Status, tt.want)
			}
			if len(r.Components) != len(tt.checks) {
				t.Errorf("components = %d", len(r.Components))
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("corpus", fixed(StatusUp))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}

	c.Register("redis", fixed(StatusDegraded))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded ready status = %d", rec.Code)
	}
}
