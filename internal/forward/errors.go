package forward

import "errors"

// ErrForwarding indicates the back-office notification could not be
// delivered. Opaque to the pipeline; surfaced to the caller.
var ErrForwarding = errors.New("forwarding failed")
