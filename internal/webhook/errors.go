package webhook

import "errors"

// ErrValidation indicates the payload lacks a recognizable message body or
// sender identifier. Validation failures are dropped by the pipeline, never
// retried.
var ErrValidation = errors.New("invalid webhook payload")
