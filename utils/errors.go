package utils

import "errors"

// Error kinds shared by the tokenizer, the models and the config layer.
// Call sites wrap them with fmt.Errorf("%w: ...") so callers can errors.Is.
var (
	ErrUnknownToken      = errors.New("unknown token")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDeviceUnavailable = errors.New("device unavailable")
)
