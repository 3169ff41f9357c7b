package entities

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressLength is the length of a full account address including the 0x prefix
const AddressLength = 66

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsValidAddress reports whether s is 0x followed by exactly 64 hex characters
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidateAddress returns an ErrInvalidAddress describing why s is rejected
func ValidateAddress(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	case !strings.HasPrefix(s, "0x"):
		return fmt.Errorf("%w: %q is missing the 0x prefix", ErrInvalidAddress, s)
	case len(s) != AddressLength:
		return fmt.Errorf("%w: %q has %d characters, expected %d", ErrInvalidAddress, s, len(s), AddressLength)
	case !addressPattern.MatchString(s):
		return fmt.Errorf("%w: %q contains non-hex characters", ErrInvalidAddress, s)
	}
	return nil
}

// NormalizeAddress validates s and returns its lowercase canonical form
func NormalizeAddress(s string) (string, error) {
	if err := ValidateAddress(s); err != nil {
		return "", err
	}
	return common.HexToHash(s).Hex(), nil
}

// SameAddress compares two addresses case-insensitively
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
