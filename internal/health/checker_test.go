package health

import (
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("Status.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestResultChaining(t *testing.T) {
	result := Degraded("slow")

	if got := result.WithDetail("url", "http://x").WithLatency(3 * time.Millisecond); got != result {
		t.Fatal("chained calls should return the same result")
	}
	if result.Status != StatusDegraded || result.Message != "slow" {
		t.Errorf("result = %+v", result)
	}
	if result.Details["url"] != "http://x" {
		t.Errorf("Details[url] = %v", result.Details["url"])
	}
	if result.Latency != 3*time.Millisecond {
		t.Errorf("Latency = %v", result.Latency)
	}
}

func TestConstructors(t *testing.T) {
	if Healthy("a").Status != StatusHealthy {
		t.Error("Healthy")
	}
	if Unhealthy("b").Status != StatusUnhealthy {
		t.Error("Unhealthy")
	}
	if NewResult(StatusHealthy, "c").Details == nil {
		t.Error("Details should be initialized")
	}
}
