//go:build !darwin

package permissions

import "github.com/rs/zerolog"

// CheckMicrophone reports authorized; other platforms have no capture prompt.
func CheckMicrophone() (int, error) {
	return PermissionAuthorized, nil
}

// EnsureMicrophone is a no-op on non-macOS platforms.
func EnsureMicrophone(zerolog.Logger) error {
	return nil
}
