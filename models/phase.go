package models

// Phase is a competition stage. The declared order is the single source of
// truth consumed by both bracket seeding and winner progression — never
// duplicate it with ad-hoc comparisons.
type Phase string

const (
	PhasePreliminary  Phase = "preliminary"
	PhaseWildcard     Phase = "wildcard"
	PhaseRoundOf32    Phase = "round_of_32"
	PhaseRoundOf16    Phase = "round_of_16"
	PhaseQuarterfinal Phase = "quarterfinal"
	PhaseSemifinal    Phase = "semifinal"
	PhaseThirdPlace   Phase = "third_place"
	PhaseFinal        Phase = "final"
)

// phaseOrder is the total ordering of every phase, earliest first.
var phaseOrder = []Phase{
	PhasePreliminary,
	PhaseWildcard,
	PhaseRoundOf32,
	PhaseRoundOf16,
	PhaseQuarterfinal,
	PhaseSemifinal,
	PhaseThirdPlace,
	PhaseFinal,
}

// eliminationLadder holds the bracket columns a winner climbs through.
// The third-place battle sits outside the ladder: it is only ever reached
// by semifinal losers.
var eliminationLadder = []Phase{
	PhaseRoundOf32,
	PhaseRoundOf16,
	PhaseQuarterfinal,
	PhaseSemifinal,
	PhaseFinal,
}

// PhaseIndex returns the position of p in the total ordering, or -1 for an
// unknown phase.
func PhaseIndex(p Phase) int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// IsValidPhase reports whether p is a known phase.
func IsValidPhase(p Phase) bool { return PhaseIndex(p) >= 0 }

// IsEliminationPhase reports whether p is a bracket column that can be seeded.
func IsEliminationPhase(p Phase) bool {
	for _, ph := range eliminationLadder {
		if ph == p {
			return true
		}
	}
	return false
}

// NextEliminationPhase returns the bracket column a winner of p advances to.
// The boolean is false when p has no successor (the final, the third-place
// battle, and non-bracket phases).
func NextEliminationPhase(p Phase) (Phase, bool) {
	for i, ph := range eliminationLadder {
		if ph == p && i+1 < len(eliminationLadder) {
			return eliminationLadder[i+1], true
		}
	}
	return "", false
}

// PhaseForBracketSize maps a bracket size onto its opening column.
func PhaseForBracketSize(size int) (Phase, bool) {
	switch size {
	case 32:
		return PhaseRoundOf32, true
	case 16:
		return PhaseRoundOf16, true
	case 8:
		return PhaseQuarterfinal, true
	}
	return "", false
}
