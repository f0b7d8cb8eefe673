package mint

// State is the workflow position for one identity within this process.
// The presentation layer renders it; it never owns it.
type State int

const (
	StateUnchecked State = iota
	StateChecking
	StateNotEligible
	StateEligibleUnminted
	StateMinting
	StateReconciling
	StateMintedReconciled
	StateMintedUnreconciled
)

func (s State) String() string {
	switch s {
	case StateUnchecked:
		return "unchecked"
	case StateChecking:
		return "checking"
	case StateNotEligible:
		return "not_eligible"
	case StateEligibleUnminted:
		return "eligible_unminted"
	case StateMinting:
		return "minting"
	case StateReconciling:
		return "reconciling"
	case StateMintedReconciled:
		return "minted_reconciled"
	case StateMintedUnreconciled:
		return "minted_unreconciled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the automatic flow stops here. MintedUnreconciled
// is terminal for the automatic flow but still actionable by a manual
// reconciliation retry.
func (s State) Terminal() bool {
	switch s {
	case StateNotEligible, StateMintedReconciled, StateMintedUnreconciled:
		return true
	default:
		return false
	}
}
