package errs

// Failure classes of the realtime core. Codes in the 11xx range are fatal
// to the connection, 12xx are recoverable and reported to the sender only.
const (
	CodeUnauthenticated   = 1101 // bad/missing token at connect
	CodeProtocolViolation = 1102 // unparsable frame, or traffic before auth
	CodeValidation        = 1103 // missing/empty required field; event dropped
	CodeForbidden         = 1104 // user is not a member of the conversation
	CodeStorage           = 1201 // persistence call failed
)

var (
	ErrUnauthenticated   = NewCodeError(CodeUnauthenticated, "unauthenticated")
	ErrProtocolViolation = NewCodeError(CodeProtocolViolation, "protocol violation")
	ErrValidation        = NewCodeError(CodeValidation, "invalid event body")
	ErrForbidden         = NewCodeError(CodeForbidden, "forbidden")
	ErrStorage           = NewCodeError(CodeStorage, "storage error")
)
