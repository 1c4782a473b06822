package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"streamgate/internal/core/domain"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"slug", "vid-123", false},
		{"uuid", "3f2b8c1e-8a4d-4c8e-9a55-0b7f4c2d1e90", false},
		{"empty", "", true},
		{"path traversal", "../etc", true},
		{"spaces", "vid 123", true},
		{"too long", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id, "video id")
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContentRef(t *testing.T) {
	assert.NoError(t, ValidateContentRef("6c0b2a4e-1f7d-4a3b-8e9c-5d2f1a0b3c4d"))
	assert.Error(t, ValidateContentRef(""))
	assert.Error(t, ValidateContentRef("abc/def"))
	assert.Error(t, ValidateContentRef("abc?token=x"))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Intro to Go"))
	assert.Error(t, ValidateTitle("   "))
	assert.Error(t, ValidateTitle(strings.Repeat("x", 201)))
	assert.Error(t, ValidateTitle(string([]byte{0xff, 0xfe})))
}

func TestValidateCountryCodes(t *testing.T) {
	assert.NoError(t, ValidateCountryCodes(nil))
	assert.NoError(t, ValidateCountryCodes([]string{"US", "GB"}))
	assert.Error(t, ValidateCountryCodes([]string{"us"}))
	assert.Error(t, ValidateCountryCodes([]string{"USA"}))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://vz-abc.b-cdn.net/ref/playlist.m3u8"))
	assert.Error(t, ValidateURL("/relative/path"))
	assert.Error(t, ValidateURL("ftp://example.com/x"))
}

func TestValidateProgressAndDescription(t *testing.T) {
	assert.NoError(t, ValidateProgress(0))
	assert.Error(t, ValidateProgress(-1))
	assert.NoError(t, ValidateDescription(""))
	assert.Error(t, ValidateDescription(strings.Repeat("d", 5001)))
}
