package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want AccountStatus
		ok   bool
	}{
		{"IDLE", StatusIdle, true},
		{" checking ", StatusChecking, true},
		{"Qualified", StatusQualified, true},
		{"product", StatusProduct, true},
		{"INVALID", StatusInvalid, true},
		{"", "", false},
		{"DONE", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsCallbackResult(t *testing.T) {
	assert.True(t, StatusQualified.IsCallbackResult())
	assert.True(t, StatusInvalid.IsCallbackResult())
	assert.False(t, StatusIdle.IsCallbackResult())
	assert.False(t, StatusChecking.IsCallbackResult())
	assert.False(t, StatusProduct.IsCallbackResult())
}

func TestWithFinished(t *testing.T) {
	tests := []struct {
		from     AccountStatus
		finished bool
		want     AccountStatus
	}{
		{StatusQualified, true, StatusProduct},
		{StatusProduct, false, StatusQualified},
		{StatusProduct, true, StatusProduct},
		{StatusQualified, false, StatusQualified},
		{StatusInvalid, true, StatusInvalid},
		{StatusInvalid, false, StatusInvalid},
		{StatusIdle, true, StatusIdle},
		{StatusChecking, true, StatusChecking},
	}

	for _, tt := range tests {
		got := tt.from.WithFinished(tt.finished)
		assert.Equal(t, tt.want, got, "%s finished=%v", tt.from, tt.finished)
	}
}

func TestParseImportMode(t *testing.T) {
	mode, ok := ParseImportMode("")
	assert.True(t, ok)
	assert.Equal(t, ImportModeAppend, mode)

	mode, ok = ParseImportMode("overwrite")
	assert.True(t, ok)
	assert.Equal(t, ImportModeOverwrite, mode)

	_, ok = ParseImportMode("replace")
	assert.False(t, ok)
}

func TestProfilePatchApply(t *testing.T) {
	token := "TOKEN999"
	empty := ""
	acc := &Account{
		Email:         "alice@x.com",
		Password:      "pw1",
		RecoveryEmail: "r@x.com",
		Status:        StatusQualified,
		Sold:          true,
	}

	ProfilePatch{AuthenticatorToken: &token, Password: &empty}.Apply(acc)

	assert.Equal(t, "", acc.Password)
	assert.Equal(t, "TOKEN999", acc.AuthenticatorToken)
	assert.Equal(t, "r@x.com", acc.RecoveryEmail)
	assert.Equal(t, StatusQualified, acc.Status)
	assert.True(t, acc.Sold)
}

func TestNewStatusView(t *testing.T) {
	view := NewStatusView([]Account{
		{Email: "a@x.com", Status: StatusIdle},
		{Email: "b@x.com", Status: StatusIdle},
		{Email: "c@x.com", Status: StatusInvalid},
	})

	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 2, view.Counts[StatusIdle])
	assert.Equal(t, 1, view.Counts[StatusInvalid])
	assert.Equal(t, 0, view.Counts[StatusProduct])

	empty := NewStatusView(nil)
	assert.NotNil(t, empty.Accounts)
	assert.Equal(t, 0, empty.Total)
}
