package parse

import "testing"

func TestDeviceUserFromLine(t *testing.T) {
	user, err := DeviceUserFromLine("0 name=admin group=full last-logged-in=2025-01-02")
	if err != nil {
		t.Fatalf("DeviceUserFromLine: %v", err)
	}
	if user.Name != "admin" || user.Group != "full" {
		t.Errorf("user = %+v, want admin/full", user)
	}
	if user.Disabled {
		t.Error("Disabled = true, want false")
	}
}

func TestDeviceUserFromLineDisabledFlag(t *testing.T) {
	user, err := DeviceUserFromLine("1 X name=backup group=read")
	if err != nil {
		t.Fatalf("DeviceUserFromLine: %v", err)
	}
	if !user.Disabled {
		t.Error("Disabled = false, want true for X flag")
	}
}
