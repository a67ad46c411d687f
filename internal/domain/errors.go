package domain

import "errors"

var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrUnsupportedAPI    = errors.New("required audio api is not supported")
	ErrConnectionFailure = errors.New("connection to server failed")
	ErrDecodeFailure     = errors.New("audio chunk could not be decoded")
	ErrEncoderInit       = errors.New("pcm encoder could not be installed")
)

// ErrorKind classifies errors for status reporting and metrics.
type ErrorKind string

const (
	ErrorKindPermissionDenied  ErrorKind = "permission_denied"
	ErrorKindUnsupportedAPI    ErrorKind = "unsupported_api"
	ErrorKindConnectionFailure ErrorKind = "connection_failure"
	ErrorKindDecodeFailure     ErrorKind = "decode_failure"
	ErrorKindEncoderInit       ErrorKind = "encoder_init_failure"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// KindOf maps an error onto the taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return ErrorKindPermissionDenied
	case errors.Is(err, ErrUnsupportedAPI):
		return ErrorKindUnsupportedAPI
	case errors.Is(err, ErrConnectionFailure):
		return ErrorKindConnectionFailure
	case errors.Is(err, ErrDecodeFailure):
		return ErrorKindDecodeFailure
	case errors.Is(err, ErrEncoderInit):
		return ErrorKindEncoderInit
	default:
		return ErrorKindUnknown
	}
}
