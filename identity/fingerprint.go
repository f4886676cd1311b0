package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"agency_listings/models"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"apartment": "apt",
		"suite":     "ste",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Key identifies a listing across feeds. The service's identifying number is
// used when present; records without one fall back to an address fingerprint
// prefixed with "fp:" so the two spaces never collide.
func Key(listing models.Listing) string {
	if id := listing.ID(); id != "" {
		return id
	}
	return "fp:" + Fingerprint(listing)
}

// Identifiable reports whether the listing carries anything to key on: an ID
// or at least one of the fingerprint fields. Records without either all share
// the same fingerprint and must not be deduplicated against each other.
func Identifiable(listing models.Listing) bool {
	if listing.ID() != "" {
		return true
	}
	for _, field := range []string{models.FieldAddress, models.FieldCity, models.FieldPrice} {
		if strings.TrimSpace(listing.String(field)) != "" {
			return true
		}
	}
	return false
}

func Fingerprint(listing models.Listing) string {
	input := fmt.Sprintf("%s|%s|%s|%t",
		NormalizeAddress(listing.String(models.FieldAddress)),
		NormalizeAddress(listing.String(models.FieldCity)),
		listing.String(models.FieldPrice),
		listing.IsRental(),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	addr = strings.Join(words, " ")
	return multiSpaceRegex.ReplaceAllString(addr, " ")
}
