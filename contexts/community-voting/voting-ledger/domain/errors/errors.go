package errors

import "errors"

var (
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyVoted          = errors.New("voter already voted for entity")
	ErrNameEmpty             = errors.New("entity name is empty")
	ErrNameTooLong           = errors.New("entity name is too long")
	ErrUnauthorized          = errors.New("caller is not the ledger admin")
	ErrUnauthenticated       = errors.New("caller identity is not authenticated")
	ErrAlreadyInitialized    = errors.New("ledger is already initialized")
	ErrConflict              = errors.New("ledger conflict")
	ErrScoreboardUnavailable = errors.New("scoreboard projection is not configured")
)
