package engine

// Escalation is the outcome of applying the violation policy to a count.
// Exactly one of the three bands applies:
//
//	count < warning          → silently logged
//	warning <= count < hard  → Warn with the remaining budget
//	count >= hard            → Terminate
type Escalation struct {
	Count     int  `json:"count"`
	Warn      bool `json:"warn"`
	Terminate bool `json:"terminate"`
	// Remaining is the number of further violations before forced
	// termination; only meaningful when Warn is set.
	Remaining int `json:"remaining,omitempty"`
}

// Escalate is a pure function of (count, warning threshold, hard threshold).
func Escalate(count, warning, hard int) Escalation {
	esc := Escalation{Count: count}
	switch {
	case count >= hard:
		esc.Terminate = true
	case count >= warning:
		esc.Warn = true
		esc.Remaining = hard - count
	}
	return esc
}
