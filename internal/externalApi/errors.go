package externalApi

import "errors"

var (
	ErrNotFound = errors.New("error not found")
	// ErrQuoteUnavailable is the "no price" signal of every quote source.
	ErrQuoteUnavailable = errors.New("error quote unavailable")
)
