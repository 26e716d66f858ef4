package model

import (
	"testing"
	"time"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleStudent, true},
		{RoleFaculty, true},
		{RoleEmployer, true},
		{RoleViewer, true},
		{Role("admin"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestRole_DisplayName(t *testing.T) {
	if got := RoleEmployer.DisplayName(); got != "Potential Employer" {
		t.Errorf("DisplayName() = %q, want %q", got, "Potential Employer")
	}
	// 未知の種別はそのまま返す
	if got := Role("alumni").DisplayName(); got != "alumni" {
		t.Errorf("DisplayName() = %q, want %q", got, "alumni")
	}
}

func TestRole_BadgeColor(t *testing.T) {
	if got := RoleFaculty.BadgeColor(); got != "#d60000" {
		t.Errorf("BadgeColor() = %q, want %q", got, "#d60000")
	}
	if got := Role("alumni").BadgeColor(); got != "#666666" {
		t.Errorf("BadgeColor() = %q, want default %q", got, "#666666")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Error("session should not be expired before ExpiresAt")
	}
	if !s.Expired(now.Add(time.Minute)) {
		t.Error("session should be expired at ExpiresAt")
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewMakerNotFoundError("m-1")
	if got := err.Error(); got != "[MAKER_NOT_FOUND] Maker not found: m-1" {
		t.Errorf("Error() = %q", got)
	}
}
