package monitoring

import (
	"context"
	"testing"
)

func TestHostDefaultCheckInterval(t *testing.T) {
	h := &Host{}
	if err := h.OnConfigLoaded(context.Background()); err != nil {
		t.Fatalf("OnConfigLoaded: %v", err)
	}
	if h.CheckInterval != 60 {
		t.Errorf("expected default check interval 60, got %d", h.CheckInterval)
	}

	h = &Host{CheckInterval: 30}
	if err := h.OnConfigLoaded(context.Background()); err != nil {
		t.Fatalf("OnConfigLoaded: %v", err)
	}
	if h.CheckInterval != 30 {
		t.Errorf("expected declared check interval to stick, got %d", h.CheckInterval)
	}
}

func TestHostProcessCheckResult(t *testing.T) {
	h := &Host{}

	h.ProcessCheckResult(&CheckResult{State: StateOK, ExecutionEnd: 100})
	if h.State() != HostUp {
		t.Errorf("expected UP after OK result, got %s", h.State())
	}
	if h.LastCheck != 100 {
		t.Errorf("expected last check 100, got %v", h.LastCheck)
	}
	if h.LastStateChange != 100 {
		t.Errorf("expected first result to set last state change, got %v", h.LastStateChange)
	}

	// Same state again must not move the state change timestamp.
	h.ProcessCheckResult(&CheckResult{State: StateWarning, ExecutionEnd: 160})
	if h.State() != HostUp {
		t.Errorf("expected WARNING to map to UP, got %s", h.State())
	}
	if h.LastStateChange != 100 {
		t.Errorf("expected unchanged state change timestamp, got %v", h.LastStateChange)
	}

	h.ProcessCheckResult(&CheckResult{State: StateCritical, ExecutionEnd: 220})
	if h.State() != HostDown {
		t.Errorf("expected DOWN after CRITICAL result, got %s", h.State())
	}
	if h.LastStateChange != 220 {
		t.Errorf("expected state change at 220, got %v", h.LastStateChange)
	}
}

func TestServiceProcessCheckResult(t *testing.T) {
	s := &Service{}

	s.ProcessCheckResult(&CheckResult{State: StateOK, ExecutionEnd: 100})
	if s.State() != StateOK {
		t.Errorf("expected OK, got %s", s.State())
	}
	if s.LastStateChange != 100 {
		t.Errorf("expected first result to set last state change, got %v", s.LastStateChange)
	}

	s.ProcessCheckResult(&CheckResult{State: StateOK, ExecutionEnd: 160})
	if s.LastStateChange != 100 {
		t.Errorf("expected unchanged state change timestamp, got %v", s.LastStateChange)
	}

	s.ProcessCheckResult(&CheckResult{State: StateCritical, ExecutionEnd: 220})
	if s.State() != StateCritical {
		t.Errorf("expected CRITICAL, got %s", s.State())
	}
	if s.LastStateChange != 220 {
		t.Errorf("expected state change at 220, got %v", s.LastStateChange)
	}
	if s.LastCheck != 220 {
		t.Errorf("expected last check 220, got %v", s.LastCheck)
	}
}
