package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidAddress(t *testing.T) {
	valid := "0x" + strings.Repeat("a", 64)

	tests := []struct {
		name string
		addr string
		want bool
	}{
		{"lowercase hex", valid, true},
		{"mixed case hex", "0x" + strings.Repeat("aB", 32), true},
		{"all digits", "0x" + strings.Repeat("0", 64), true},
		{"empty", "", false},
		{"missing prefix", strings.Repeat("a", 66), false},
		{"uppercase prefix", "0X" + strings.Repeat("a", 64), false},
		{"too short", "0x" + strings.Repeat("a", 63), false},
		{"too long", "0x" + strings.Repeat("a", 65), false},
		{"short form", "0x1", false},
		{"non-hex", "0x" + strings.Repeat("g", 64), false},
		{"evm length", "0x" + strings.Repeat("a", 40), false},
		{"trailing newline", valid + "\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidAddress(tt.addr))
		})
	}
}

func TestValidateAddress(t *testing.T) {
	for _, addr := range []string{"", "abc", "0x12", "0x" + strings.Repeat("z", 64)} {
		err := ValidateAddress(addr)
		require.Error(t, err, addr)
		assert.ErrorIs(t, err, ErrInvalidAddress)
		assert.Equal(t, KindInvalidAddress, KindOf(err))
	}

	assert.NoError(t, ValidateAddress("0x"+strings.Repeat("f", 64)))
}

func TestNormalizeAddress(t *testing.T) {
	upper := "0x" + strings.Repeat("AB", 32)

	got, err := NormalizeAddress(upper)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(upper), got)
	assert.True(t, SameAddress(upper, got))

	_, err = NormalizeAddress("0x1")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
