package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownItemType = errors.New("unknown item type")
	ErrInvalidConfig   = errors.New("invalid generation config")
	ErrMissingPhoto    = errors.New("child photo is required")
	ErrRunInProgress   = errors.New("kit generation already running")
	ErrNoResults       = errors.New("kit has no generated images")
)
