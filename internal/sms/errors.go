package sms

import "fmt"

// DispatchKind classifies why a carrier send failed.
type DispatchKind int

const (
	// KindProviderTimeout means the carrier did not answer within the timeout.
	KindProviderTimeout DispatchKind = iota + 1
	// KindProviderUnavailable means the request could not be delivered.
	KindProviderUnavailable
	// KindProviderRejected means the carrier answered with status >= 400.
	KindProviderRejected
)

func (k DispatchKind) String() string {
	switch k {
	case KindProviderTimeout:
		return "provider_timeout"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindProviderRejected:
		return "provider_rejected"
	default:
		return fmt.Sprintf("DispatchKind(%d)", int(k))
	}
}

// DispatchError is returned by TwilioDispatcher.Send. Carrier details are
// kept for logging; callers only ever see PublicMessage.
type DispatchError struct {
	Kind            DispatchKind
	StatusCode      int
	ProviderCode    string
	ProviderMessage string
	Err             error
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case KindProviderRejected:
		if e.ProviderMessage != "" {
			return fmt.Sprintf("twilio: error %d: %s", e.StatusCode, e.ProviderMessage)
		}
		return fmt.Sprintf("twilio: error %d", e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("twilio: %s: %v", e.Kind, e.Err)
		}
		return "twilio: " + e.Kind.String()
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

// PublicMessage is the generic detail returned to API callers.
func (e *DispatchError) PublicMessage() string {
	switch e.Kind {
	case KindProviderTimeout:
		return "notification provider timeout"
	case KindProviderRejected:
		return "notification provider rejected request"
	default:
		return "notification provider unavailable"
	}
}
