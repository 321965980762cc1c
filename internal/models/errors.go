package models

import "errors"

var (
	// ErrProvider means the search provider call failed outright.
	ErrProvider = errors.New("news provider unavailable")
	// ErrParse means the provider answered but its text held no parseable JSON array.
	ErrParse = errors.New("malformed provider response")
	// ErrRemoteStore means the remote document store was unreachable or refused the call.
	ErrRemoteStore = errors.New("remote store unavailable")
)
