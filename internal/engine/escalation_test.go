package engine

import "testing"

func TestEscalate(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  Escalation
	}{
		{"below warning", 1, Escalation{Count: 1}},
		{"last silent count", 2, Escalation{Count: 2}},
		{"first warning", 3, Escalation{Count: 3, Warn: true, Remaining: 2}},
		{"last warning", 4, Escalation{Count: 4, Warn: true, Remaining: 1}},
		{"hard threshold", 5, Escalation{Count: 5, Terminate: true}},
		{"past hard threshold", 7, Escalation{Count: 7, Terminate: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escalate(tt.count, 3, 5); got != tt.want {
				t.Errorf("Escalate(%d, 3, 5) = %+v, want %+v", tt.count, got, tt.want)
			}
		})
	}
}

func TestEscalateBandsAreExclusive(t *testing.T) {
	for count := 0; count <= 10; count++ {
		esc := Escalate(count, 3, 5)
		if esc.Warn && esc.Terminate {
			t.Errorf("count %d: both Warn and Terminate set", count)
		}
		if !esc.Warn && esc.Remaining != 0 {
			t.Errorf("count %d: Remaining %d without Warn", count, esc.Remaining)
		}
	}
}
