package validate

import "errors"

// ErrInvalidRecordID is returned for any value that is not a well-formed
// record id. Its text is shown to users verbatim.
var ErrInvalidRecordID = errors.New("Invalid user id.")

// Error is a field-level rejection. Message is user-facing.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

// IsFieldError reports whether err is a validation rejection for field.
func IsFieldError(err error, field string) bool {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Field == field
	}
	return false
}
