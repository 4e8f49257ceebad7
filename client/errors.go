package client

import (
	"fmt"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/base"
)

// ErrorKind classifies a session-level failure: association rejection,
// misuse while not associated, a broken transport/cipher desync, a
// violated block-transfer sequencing assumption, an invoke-id mismatch, a
// PDU that exceeds the negotiated size, or a normal application-level
// result.
type ErrorKind int

const (
	Rejected ErrorKind = iota
	NotAssociated
	SessionBroken
	BlockSequenceError
	UnexpectedInvokeId
	PduTooLarge
	ResultError
)

func (k ErrorKind) String() string {
	switch k {
	case Rejected:
		return "rejected"
	case NotAssociated:
		return "not associated"
	case SessionBroken:
		return "broken"
	case BlockSequenceError:
		return "block sequence error"
	case UnexpectedInvokeId:
		return "unexpected invoke-id"
	case PduTooLarge:
		return "pdu too large"
	case ResultError:
		return "result error"
	default:
		return "unknown"
	}
}

// Error reports a session-level failure, as opposed to a wire-level
// CodecError/ApduError/CipherError which these wrap when relevant.
type Error struct {
	Kind       ErrorKind
	Diagnostic base.SourceDiagnostic // set for Rejected
	Result     apdu.AccessResultTag  // set for ResultError from a GET/SET
	Action     *apdu.ActionResult    // set for ResultError from an ACTION
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Rejected:
		return fmt.Sprintf("client: association rejected: %s", e.Diagnostic)
	case ResultError:
		if e.Action != nil {
			return fmt.Sprintf("client: action failed: %v", e.Action.Result)
		}
		return fmt.Sprintf("client: result error: %v", e.Result)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("client: %s: %s", e.Kind, e.Cause)
		}
		return fmt.Sprintf("client: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}
