package analysis

import "fmt"

// ErrFatal marks analysis failures that must not be retried: 4xx responses,
// malformed 2xx bodies, and exhausted retry budgets.
var ErrFatal = fmt.Errorf("analysis failed")

// ErrMalformedResponse indicates a 2xx provider response with no extractable
// content. Treated as fatal.
var ErrMalformedResponse = fmt.Errorf("malformed analysis response")

// statusError carries a provider HTTP status so the dispatcher can classify
// it as transient (5xx) or fatal (4xx).
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("provider returned status %d", e.code)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.code, e.body)
}

func (e *statusError) transient() bool {
	return e.code >= 500
}
