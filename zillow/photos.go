package zillow

import (
	"regexp"
	"strings"
)

const defaultPlaceholder = "https://via.placeholder.com/400x300?text=No+Image"

// Search thumbnails come back as "-p_e.jpg"; the "-cc_ft_960" rendition is
// the same photo at card size.
var photoSizePattern = regexp.MustCompile(`-p_[a-z]\.(jpg|webp)$`)

func imageOrPlaceholder(href, placeholder string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return placeholder
	}
	return photoSizePattern.ReplaceAllString(href, "-cc_ft_960.$1")
}
