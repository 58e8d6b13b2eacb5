// Package fingerprint derives stable identities for candidate posts.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/aleister1102/postwatch/internal/models"
)

// Of returns the hex SHA-256 of the link, or of title+image when there is no link.
// A post keeps its identity when only its image changes.
func Of(c models.Candidate) string {
	input := c.Link
	if input == "" {
		input = c.Title + c.Image
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Changed reports whether fp should trigger a notification given the stored value.
func Changed(last *string, fp string) bool {
	return last == nil || *last != fp
}

// Newest returns the candidate treated as the newest post: the first in document order.
func Newest(candidates []models.Candidate) (models.Candidate, bool) {
	if len(candidates) == 0 {
		return models.Candidate{}, false
	}
	return candidates[0], true
}
