package sessions

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSessionFull         = errors.New("session is full")
	ErrRoleTaken           = errors.New("role already taken")
	ErrInvalidRole         = errors.New("invalid role")
)
