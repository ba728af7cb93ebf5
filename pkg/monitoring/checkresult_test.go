package monitoring

import "testing"

func TestNewCheckResultDefaults(t *testing.T) {
	cr := NewCheckResult()

	if !cr.Active {
		t.Error("expected new check results to be active")
	}
	if cr.State != StateUnknown {
		t.Errorf("expected UNKNOWN initial state, got %s", cr.State)
	}
	if cr.ScheduleStart <= 0 {
		t.Errorf("expected schedule start to be set, got %v", cr.ScheduleStart)
	}
}

func TestCheckResultExecutionTime(t *testing.T) {
	cr := &CheckResult{
		ExecutionStart: 100.0,
		ExecutionEnd:   102.5,
	}
	if got := cr.ExecutionTime(); got != 2.5 {
		t.Errorf("expected execution time 2.5, got %v", got)
	}
}

func TestCheckResultLatency(t *testing.T) {
	tests := []struct {
		name string
		cr   CheckResult
		want float64
	}{
		{
			name: "waited before execution",
			cr:   CheckResult{ScheduleStart: 100, ScheduleEnd: 104, ExecutionStart: 101, ExecutionEnd: 104},
			want: 1,
		},
		{
			name: "no wait",
			cr:   CheckResult{ScheduleStart: 100, ScheduleEnd: 102, ExecutionStart: 100, ExecutionEnd: 102},
			want: 0,
		},
		{
			name: "clock skew clamps to zero",
			cr:   CheckResult{ScheduleStart: 100, ScheduleEnd: 101, ExecutionStart: 100, ExecutionEnd: 102},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cr.Latency(); got != tt.want {
				t.Errorf("expected latency %v, got %v", tt.want, got)
			}
		})
	}
}

func TestServiceStateString(t *testing.T) {
	tests := []struct {
		state ServiceState
		want  string
	}{
		{StateOK, "OK"},
		{StateWarning, "WARNING"},
		{StateCritical, "CRITICAL"},
		{StateUnknown, "UNKNOWN"},
		{ServiceState(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ServiceState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestServiceStateToHostState(t *testing.T) {
	tests := []struct {
		state ServiceState
		want  HostState
	}{
		{StateOK, HostUp},
		{StateWarning, HostUp},
		{StateCritical, HostDown},
		{StateUnknown, HostDown},
	}

	for _, tt := range tests {
		if got := tt.state.HostState(); got != tt.want {
			t.Errorf("%s.HostState() = %s, want %s", tt.state, got, tt.want)
		}
	}

	if HostUp.String() != "UP" || HostDown.String() != "DOWN" {
		t.Error("unexpected host state names")
	}
}
