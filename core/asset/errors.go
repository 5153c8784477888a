package asset

import "errors"

var (
	// ErrGuidCollision is returned by Bank.Add when the identity is already registered.
	ErrGuidCollision = errors.New("asset: identity already registered")
	// ErrNameCollision is returned by Bank.Add when (kind, name) is already registered.
	ErrNameCollision = errors.New("asset: name already registered for kind")
	// ErrInvalidGuid is returned when an identity cannot be parsed.
	ErrInvalidGuid = errors.New("asset: invalid identity")
	// ErrUnknownKind is returned for kinds without a registration.
	ErrUnknownKind = errors.New("asset: unknown kind")
	// ErrKindRegistered is returned when a kind is registered twice.
	ErrKindRegistered = errors.New("asset: kind already registered")
	// ErrLoad wraps every failure raised by a load function.
	ErrLoad = errors.New("asset: load failed")
	// ErrNotFound is returned when an entry or its backing content is missing.
	ErrNotFound = errors.New("asset: not found")
)
