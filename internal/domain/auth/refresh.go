package auth

// RefreshOutcome classifies a token refresh attempt.
type RefreshOutcome int

const (
	// RefreshUnknown is the zero value and never reported as success.
	RefreshUnknown RefreshOutcome = iota
	// RefreshSucceeded means new tokens were issued and persisted.
	RefreshSucceeded
	// RefreshRejected means the API refused the refresh token; the user must re-authenticate.
	RefreshRejected
	// RefreshTransportFailure means the API could not be reached or timed out.
	RefreshTransportFailure
	// RefreshStorageFailure means tokens were issued but could not be persisted.
	RefreshStorageFailure
	// RefreshSuperseded means the session signed out or signed in again while the
	// request was in flight; the issued tokens were discarded.
	RefreshSuperseded
)

func (o RefreshOutcome) String() string {
	switch o {
	case RefreshSucceeded:
		return "succeeded"
	case RefreshRejected:
		return "rejected"
	case RefreshTransportFailure:
		return "transport_failure"
	case RefreshStorageFailure:
		return "storage_failure"
	case RefreshSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// RefreshResult is the outcome of RefreshAccessToken.
// Tokens is only set when Outcome is RefreshSucceeded.
type RefreshResult struct {
	Outcome RefreshOutcome
	Tokens  TokenPair
	Err     error
}

// OK reports whether the refresh produced usable tokens.
func (r RefreshResult) OK() bool { return r.Outcome == RefreshSucceeded }
