package domain

import "errors"

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionEnded    = errors.New("auction has ended")
	ErrBidTooLow       = errors.New("bid must be higher than the current highest bid")
	ErrUnauthorized    = errors.New("only the system principal can close an auction")
	ErrInvalidDuration = errors.New("auction duration must not be negative")
)
