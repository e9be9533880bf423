package orders

import "errors"

var (
	// ErrOrderNotFound indicates the store API has no order with that number.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLookupUnavailable indicates the store API could not be reached.
	ErrLookupUnavailable = errors.New("order lookup unavailable")
)
