package errors

import "fmt"

// Violation panics with an ErrorTypeContract error. It is reserved for
// bookkeeping bugs after which a pool can no longer be trusted: releasing an
// iterator that was never leased, or opening a second handle on a stream.
func Violation(format string, args ...interface{}) {
	panic(&Error{
		Type:    ErrorTypeContract,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	})
}

// RecoverViolation converts a contract-violation panic into an error stored in
// errp. Any other panic value is re-raised. It must be deferred directly:
//
//	defer errors.RecoverViolation(&err)
func RecoverViolation(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(*Error); ok && e.Type == ErrorTypeContract {
		*errp = e
		return
	}
	panic(r)
}

// IsContractViolation reports whether err carries a contract violation,
// typically one converted by RecoverViolation.
func IsContractViolation(err error) bool {
	return IsType(err, ErrorTypeContract)
}
