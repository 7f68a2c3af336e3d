package export

import (
	"strings"

	"github.com/gosimple/slug"
)

const (
	fileNamePrefix   = "so-doanh-thu-"
	fileNameSuffix   = ".xlsx"
	fallbackNameSlug = "ho-kinh-doanh"
	maxSlugLength    = 60
)

// FileName turns the tax payer name into a filesystem-safe ASCII artifact
// name, e.g. "Nguyễn Văn A" -> "so-doanh-thu-nguyen-van-a.xlsx".
func FileName(name string) string {
	s := slug.Make(strings.TrimSpace(name))
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		s = fallbackNameSlug
	}
	return fileNamePrefix + s + fileNameSuffix
}
