package service

import "errors"

var (
	ErrNotFound = errors.New("error not found")
	// ErrPortfolioNotActive is returned when a chat or request has no portfolio bound to it.
	ErrPortfolioNotActive = errors.New("error portfolio is not active")
)
