package stt

import (
	"context"
	"errors"
)

// ErrorCode is the display-only classification of a recognition failure.
type ErrorCode string

const (
	CodeNone       ErrorCode = ""
	CodeNotAllowed ErrorCode = "not-allowed"
	CodeNoSpeech   ErrorCode = "no-speech"
	CodeNetwork    ErrorCode = "network"
)

var (
	ErrNotAllowed  = errors.New("stt: microphone not allowed")
	ErrNoSpeech    = errors.New("stt: no speech detected")
	ErrNetwork     = errors.New("stt: network error")
	ErrUnsupported = errors.New("stt: recognition unsupported")
)

// CodeOf classifies err. Unknown failures count as network errors since the
// only remote party is the recognition provider.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return CodeNone
	case errors.Is(err, ErrNotAllowed), errors.Is(err, ErrUnsupported):
		return CodeNotAllowed
	case errors.Is(err, ErrNoSpeech):
		return CodeNoSpeech
	default:
		return CodeNetwork
	}
}
