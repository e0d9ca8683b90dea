package domain

import "errors"

var (
	ErrNoRuleConfig       = errors.New("no search configuration found for server")
	ErrPlatformDisabled   = errors.New("platform credentials not configured")
	ErrGameNotFound       = errors.New("game not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrTooManyServers     = errors.New("too many server IDs requested")
	ErrNoServersRequested = errors.New("no server IDs requested")
)
