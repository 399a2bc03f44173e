//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import (
	"fmt"

	"github.com/rs/zerolog"
)

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() (int, error) {
	status := int(C.checkMicrophonePermission())
	return status, nil
}

// RequestMicrophone triggers the system microphone permission dialog
func RequestMicrophone() error {
	C.requestMicrophonePermission()
	return nil
}

// EnsureMicrophone checks microphone access and asks for it when missing.
// Loopback capture does not need it.
func EnsureMicrophone(log zerolog.Logger) error {
	status, _ := CheckMicrophone()
	if status == PermissionAuthorized {
		return nil
	}

	log.Warn().Str("status", StatusName(status)).Msg("Microphone permission required")
	if status == PermissionNotDetermined {
		RequestMicrophone()
	} else {
		log.Warn().Msg("Go to: System Settings → Privacy & Security → Microphone")
	}
	return fmt.Errorf("%w (%s)", ErrMicrophoneDenied, StatusName(status))
}
