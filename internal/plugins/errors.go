package plugins

import "errors"

// Sentinel errors for registry operations. Callers match with errors.Is;
// wrapped messages carry the plugin id and detail.
var (
	ErrAlreadyExists   = errors.New("plugin already exists")
	ErrNotFound        = errors.New("plugin not found")
	ErrFeatureDisabled = errors.New("feature not enabled")
	ErrInitialization  = errors.New("plugin initialization failed")
	ErrErrorState      = errors.New("plugin is in error state")

	// ErrDependencyNotFound is reserved: descriptors carry no dependency
	// declarations yet, so nothing produces it today.
	ErrDependencyNotFound = errors.New("plugin dependency not found")
)
