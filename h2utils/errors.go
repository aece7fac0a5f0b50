package h2utils

import "errors"

var (
	ErrZeroPayload = errors.New("h2utils: zero-length padded payload")
	ErrPadTooLarge = errors.New("h2utils: pad length exceeds frame length")
)
