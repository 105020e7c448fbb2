package connect

// Outcome is the explicit result of one handler operation. Recoverable
// states are values, not errors: NotYetReady keeps the event queued for
// the next pass, AuthorizationDropped resolves it without applying.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNotYetReady
	OutcomeAuthorizationDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNotYetReady:
		return "not_yet_ready"
	case OutcomeAuthorizationDropped:
		return "authorization_dropped"
	default:
		return "unknown"
	}
}
