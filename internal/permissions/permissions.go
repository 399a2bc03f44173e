package permissions

import "errors"

// Authorization states reported by the platform
const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

var ErrMicrophoneDenied = errors.New("microphone permission not granted")

// StatusName returns a readable name for a permission state
func StatusName(status int) string {
	switch status {
	case PermissionNotDetermined:
		return "not determined"
	case PermissionRestricted:
		return "restricted"
	case PermissionDenied:
		return "denied"
	case PermissionAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}
