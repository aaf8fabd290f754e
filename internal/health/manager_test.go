package health

import (
	"context"
	"testing"
	"time"
)

// mockChecker is a test double for health checks
type mockChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) *Result {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Unhealthy("check cancelled").
				WithDetail("error", ctx.Err().Error())
		}
	}
	return m.result
}

func TestCheckKeepsRegistrationOrder(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "slow", result: Healthy("ok"), delay: 20 * time.Millisecond})
	manager.AddChecker(&mockChecker{name: "fast", result: Degraded("meh")})

	report := manager.Check(context.Background())

	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if report.Results[0].Name != "slow" || report.Results[1].Name != "fast" {
		t.Errorf("order = %s, %s", report.Results[0].Name, report.Results[1].Name)
	}
	if report.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", report.Status)
	}
	if report.Results[0].Latency == 0 {
		t.Error("latency should be filled in")
	}
}

func TestCheckTimeout(t *testing.T) {
	manager := NewManager().WithTimeout(10 * time.Millisecond)
	manager.AddChecker(&mockChecker{name: "hang", result: Healthy("never"), delay: time.Second})

	start := time.Now()
	report := manager.Check(context.Background())

	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout was not applied")
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", report.Status)
	}
}

func TestCheckNilResult(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "broken"})

	report := manager.Check(context.Background())
	if report.Results[0].Status != StatusUnhealthy {
		t.Errorf("nil result should count as unhealthy, got %s", report.Results[0].Status)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []NamedResult
			for _, s := range tt.statuses {
				results = append(results, NamedResult{Name: "x", Result: *NewResult(s, "")})
			}
			if got := OverallStatus(results); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckNames(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "a"})
	manager.AddChecker(&mockChecker{name: "b"})

	names := manager.CheckNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("CheckNames() = %v", names)
	}
}
