// Package validation holds input rules shared by the services.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

var communitySlugRegex = regexp.MustCompile(`^[a-z0-9-]{2,63}$`)

var allDigits = regexp.MustCompile(`^[0-9]+$`)

// Slugs that would shadow a route segment or read as a feed keyword.
var reservedCommunitySlugs = map[string]struct{}{
	"admin":       {},
	"api":         {},
	"auth":        {},
	"comments":    {},
	"communities": {},
	"health":      {},
	"hot":         {},
	"metrics":     {},
	"moderation":  {},
	"new":         {},
	"posts":       {},
	"search":      {},
	"settings":    {},
	"swagger":     {},
	"top":         {},
	"users":       {},
}

// ValidateCommunitySlug checks format and reserved names. Callers lowercase
// the slug first.
func ValidateCommunitySlug(slug string) error {
	if !communitySlugRegex.MatchString(slug) {
		return errors.New("slug must be 2-63 lowercase letters, digits or dashes")
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return errors.New("slug cannot start or end with a dash")
	}
	// Numeric keys address communities by id.
	if allDigits.MatchString(slug) {
		return errors.New("slug must contain a letter or dash")
	}
	if _, exists := reservedCommunitySlugs[slug]; exists {
		return errors.New("slug is reserved")
	}
	return nil
}
