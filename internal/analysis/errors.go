package analysis

import "github.com/tphakala/train-spotter/internal/errors"

// ErrReplayCanceled is returned when a replay is interrupted before the end
// of its input.
var ErrReplayCanceled = errors.NewStd("replay canceled")
