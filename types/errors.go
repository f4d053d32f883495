package types

import "errors"

var (
	// ErrDecode is returned when a serialized object fails to parse.
	ErrDecode = errors.New("decode error")
	// ErrEncode is returned when an object cannot be serialized.
	ErrEncode = errors.New("encode error")
	// ErrOverflow is returned when a bounded buffer or dictionary would
	// exceed its capacity.
	ErrOverflow = errors.New("overflow")
)
