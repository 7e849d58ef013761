package extraction

import "errors"

// ErrNoJSON is returned when the model's text contains no {...} region.
var ErrNoJSON = errors.New("No JSON found in model response")
