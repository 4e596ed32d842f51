package analysis

import "errors"

// ErrInvalidInput marks unusable input: an empty waveform, a non-positive
// sample rate, an undecodable file, or malformed feature records passed to
// Compare/Recommend. Callers test for it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")
