package series

import "errors"

// ErrMalformedSample is returned when a sample is not a [t, v] numeric pair.
var ErrMalformedSample = errors.New("series: malformed sample")
