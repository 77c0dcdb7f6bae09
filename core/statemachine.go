package core

import (
	"fmt"
	"strings"
)

type TransitionVerdict string

const (
	// TransitionApply writes the event onto the user record.
	TransitionApply TransitionVerdict = "apply"
	// TransitionReapply repeats the current state; first timestamps are kept.
	TransitionReapply TransitionVerdict = "reapply"
	// TransitionStale drops a late non-terminal event.
	TransitionStale TransitionVerdict = "stale"
	// TransitionConflict quarantines an event that would leave a terminal state.
	TransitionConflict TransitionVerdict = "conflict"
)

type TransitionDecision struct {
	Verdict TransitionVerdict
	From    VerificationStatus
	To      WebhookType
	Reason  string
}

func (d TransitionDecision) Proceeds() bool {
	return d.Verdict == TransitionApply || d.Verdict == TransitionReapply
}

// DecideTransition enforces NEW -> SUBMITTED -> {APPROVED, DECLINED}.
// Unknown events never overwrite a terminal state, and a verified user is
// never downgraded. A decline only restarts when a new session id arrives.
func DecideTransition(current UserVerification, event CanonicalVerification) TransitionDecision {
	from := NormalizeStatus(string(current.Status))
	decision := TransitionDecision{From: from, To: event.WebhookType, Verdict: TransitionApply}

	currentSession := strings.TrimSpace(current.SessionID)
	sameSession := currentSession == "" || currentSession == strings.TrimSpace(event.SessionID)

	switch event.WebhookType {
	case WebhookTypeApproved:
		switch {
		case from == VerificationStatusApproved:
			decision.Verdict = TransitionReapply
		case from == VerificationStatusDeclined && sameSession:
			decision.Verdict = TransitionConflict
			decision.Reason = "approval received for a declined session"
		}
	case WebhookTypeDeclined:
		switch {
		case current.IdentityVerified || from == VerificationStatusApproved:
			decision.Verdict = TransitionConflict
			decision.Reason = "decline received for an already verified user"
		case from == VerificationStatusDeclined && sameSession:
			decision.Verdict = TransitionReapply
		}
	case WebhookTypeSubmitted:
		switch {
		case current.IdentityVerified:
			decision.Verdict = TransitionStale
			decision.Reason = "submission received for an already verified user"
		case from.IsTerminal() && sameSession:
			decision.Verdict = TransitionStale
			decision.Reason = fmt.Sprintf("submission received after %s", from)
		case from == VerificationStatusSubmitted && sameSession:
			decision.Verdict = TransitionReapply
		}
	default:
		decision.To = WebhookTypeUnknown
		if from.IsTerminal() {
			decision.Verdict = TransitionStale
			decision.Reason = fmt.Sprintf("unrecognized event %q ignored in %s state", event.RawEventMeaning(), from)
		}
	}
	return decision
}
