package apdu

import "github.com/dlms-go/dlmscosem/base"

// ExceptionStateError and ExceptionServiceError are the two bytes an
// ExceptionResponse carries: which association state rejected the request,
// and why.
type ExceptionStateError byte
type ExceptionServiceError byte

const (
	StateErrorServiceNotAllowed ExceptionStateError = 1
	StateErrorServiceUnknown    ExceptionStateError = 2
)

const (
	ServiceErrorOperationNotPossible   ExceptionServiceError = 1
	ServiceErrorServiceNotSupported    ExceptionServiceError = 2
	ServiceErrorOtherReason            ExceptionServiceError = 3
	ServiceErrorPduTooLong             ExceptionServiceError = 4
	ServiceErrorDecipheringError       ExceptionServiceError = 5
	ServiceErrorInvocationCounterError ExceptionServiceError = 6
)

// ExceptionResponse is the decoded body of an ExceptionResponse APDU: the
// server refused to process the request at all, below the level of an
// individual attribute or a confirmed-service-error.
type ExceptionResponse struct {
	StateError   ExceptionStateError
	ServiceError ExceptionServiceError
	Result       AccessResultTag // TagResultOtherReason when the body was truncated
}

// DecodeExceptionResponse parses the bytes following the stripped
// TagExceptionResponse tag byte. Real servers occasionally close the
// connection mid-frame; a short or empty body is reported as
// TagResultOtherReason rather than an error, matching how the rest of this
// package treats exception responses as best-effort diagnostics.
func DecodeExceptionResponse(b []byte) ExceptionResponse {
	switch len(b) {
	case 0:
		return ExceptionResponse{Result: AccessResultTag(base.TagResultOtherReason)}
	case 1:
		return ExceptionResponse{StateError: ExceptionStateError(b[0]), Result: AccessResultTag(base.TagResultOtherReason)}
	default:
		return ExceptionResponse{StateError: ExceptionStateError(b[0]), ServiceError: ExceptionServiceError(b[1])}
	}
}
