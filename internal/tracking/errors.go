package tracking

import "errors"

// ErrTrackingUnavailable indicates the tracking API rejected or failed the
// request; the summary run is abandoned and retried on the next schedule.
var ErrTrackingUnavailable = errors.New("tracking api unavailable")
