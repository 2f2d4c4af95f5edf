package domain

import "errors"

var (
	ErrMalformedBlock = errors.New("malformed block payload")
	ErrMissingField   = errors.New("missing required field")
	ErrSessionClosed  = errors.New("session is closed")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMalformedFrame = errors.New("malformed frame")
)
