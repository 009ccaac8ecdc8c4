package heap

import "errors"

var errNoSegments = errors.New("heap: no segments to iterate")
