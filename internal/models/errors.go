package models

import "errors"

// Construction-time validation errors. Tick-time operations never fail.
var (
	ErrInvalidCapacity   = errors.New("tank capacity must be positive")
	ErrInvalidAmount     = errors.New("tank amount must be within [0, capacity]")
	ErrInvalidRate       = errors.New("transfer rate must be positive")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrUnknownTank       = errors.New("unknown tank")
	ErrUnknownValve      = errors.New("unknown valve")
	ErrUnknownRule       = errors.New("unknown rule")
	ErrUnknownPipe       = errors.New("unknown pipe")
	ErrInvalidDirection  = errors.New("invalid rule direction")
	ErrInvalidDefinition = errors.New("invalid network definition")
)
