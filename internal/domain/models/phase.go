package models

// Phase identifies the position of an investigation inside the
// orchestration state machine.
//
// The machine is:
//
//	PLAN → INVESTIGATE → ACT → {INVESTIGATE | SYNTHESIZE} → DONE
//
// PLAN, INVESTIGATE and SYNTHESIZE have unconditional outgoing edges;
// ACT is the single conditional edge and is decided by the stopping
// rules owned by the orchestrator. DONE is terminal.
type Phase string

const (
	PhasePlan        Phase = "plan"
	PhaseInvestigate Phase = "investigate"
	PhaseAct         Phase = "act"
	PhaseSynthesize  Phase = "synthesize"
	PhaseDone        Phase = "done"
)

// Valid reports whether p is one of the five known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhasePlan, PhaseInvestigate, PhaseAct, PhaseSynthesize, PhaseDone:
		return true
	}
	return false
}

// Terminal reports whether the machine halts in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseDone
}

// String returns the phase name.
func (p Phase) String() string {
	return string(p)
}
