// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the handler layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Rule maps errors matching Target (errors.Is) to a problem status and title.
type Rule struct {
	Target error
	Status int
	Title  string
}

var defaultRules = []Rule{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrForbidden, Status: http.StatusForbidden, Title: "Forbidden"},
	{Target: ErrUnauthorized, Status: http.StatusUnauthorized, Title: "Unauthorized"},
}

// RespondError writes an RFC7807 problem for err. Caller rules are checked
// before the defaults. detail is shown to the client as is.
func RespondError(w http.ResponseWriter, err error, detail string, rules ...Rule) {
	status, title := Classify(err, rules...)
	Problem(w, status, title, detail)
}

// Classify returns the status and title for err.
func Classify(err error, rules ...Rule) (int, string) {
	for _, set := range [][]Rule{rules, defaultRules} {
		for _, rule := range set {
			if errors.Is(err, rule.Target) {
				return rule.Status, rule.Title
			}
		}
	}
	return http.StatusInternalServerError, "Internal Error"
}

// ValidationError carries a message meant for the operator. It matches
// ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a *ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
