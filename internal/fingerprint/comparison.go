package fingerprint

import (
	"fmt"
)

// Compare compares two fingerprints and returns an error if they don't match
func Compare(expected, actual *Fingerprint) error {
	if expected.Hash == actual.Hash {
		return nil
	}

	return fmt.Errorf("fingerprint mismatch - expected: %s, actual: %s",
		preview(expected.Hash), preview(actual.Hash))
}

func preview(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
