package session

import "errors"

var (
	// ErrBusy rejects a send while the session already has a request in
	// flight. No state changes on rejection.
	ErrBusy = errors.New("session busy: request already in flight")

	// ErrNotFound rejects operations naming a session id that is not in
	// the registry.
	ErrNotFound = errors.New("session not found")
)
