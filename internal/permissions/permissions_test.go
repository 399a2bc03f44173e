package permissions

import "testing"

func TestStatusName(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{PermissionNotDetermined, "not determined"},
		{PermissionRestricted, "restricted"},
		{PermissionDenied, "denied"},
		{PermissionAuthorized, "authorized"},
		{42, "unknown"},
	}

	for _, tt := range tests {
		if got := StatusName(tt.status); got != tt.want {
			t.Errorf("StatusName(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestCheckMicrophone(t *testing.T) {
	status, err := CheckMicrophone()
	if err != nil {
		t.Fatalf("CheckMicrophone failed: %v", err)
	}
	if StatusName(status) == "unknown" {
		t.Errorf("unexpected status %d", status)
	}
}
