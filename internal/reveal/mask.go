package reveal

import (
	"fmt"
	"regexp"
	"strings"
)

// Bullet runs used for the redacted segments. The first segment is replaced
// by four bullets and the third by eight, keeping segments two and four
// visible for partial identifiability without exposing the full secret.
const (
	maskShort = "••••"
	maskLong  = "••••••••"
)

// keyPattern is the external key-format contract: four groups of uppercase
// alphanumerics joined by dashes.
var keyPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+){3}$`)

// ValidateKeyFormat checks a license key against the format contract.
func ValidateKeyFormat(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("license key %q does not match the expected format XXXX-XXXX-XXXX-XXXX", key)
	}
	return nil
}

// MaskKey renders the masked form of a license key. A key that does not have
// exactly four dash-separated segments is rendered as-is; that is an explicit
// edge case of the display contract, not a silent failure.
func MaskKey(key string) string {
	segments := strings.Split(key, "-")
	if len(segments) != 4 {
		return key
	}
	return strings.Join([]string{maskShort, segments[1], maskLong, segments[3]}, "-")
}
