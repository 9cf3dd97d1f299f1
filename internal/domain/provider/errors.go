package provider

import "errors"

// Common errors
var (
	// ErrProviderDead indicates the transport to the provider failed and
	// the connection should be dropped from the registry.
	ErrProviderDead = errors.New("provider connection dead")

	// ErrNotConnected indicates the capability handle is nil.
	ErrNotConnected = errors.New("provider not connected")

	// ErrNotFound indicates the provider does not know the requested ref.
	ErrNotFound = errors.New("entity not found")
)

// IsDead returns true if the error means the provider is unreachable.
func IsDead(err error) bool {
	return errors.Is(err, ErrProviderDead) || errors.Is(err, ErrNotConnected)
}
