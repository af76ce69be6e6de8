package util

import "regexp"

// uuidRegex validates the standard 8-4-4-4-12 hexadecimal pattern with
// dashes, case-insensitively.
var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// IsValidUUID checks if a string is a valid UUID.
func IsValidUUID(s string) bool {
	return uuidRegex.MatchString(s)
}
