package usecase

import (
	"fmt"
	"slices"
	"strings"

	"ForecastPoster/internal/domain"
)

const (
	// PostLengthLimit is the platform cap on post text, in characters.
	PostLengthLimit = 300
	// MaxImagesPerPost is the platform cap on embedded images.
	MaxImagesPerPost = 4

	ellipsis      = "..."
	priorityToken = "sig_"
)

// PostMode selects between one post per run and one post per image.
type PostMode string

const (
	ModeBatch    PostMode = "batch"
	ModePerImage PostMode = "per_image"
)

// ParsePostMode validates a configured mode; empty means batch.
func ParsePostMode(s string) (PostMode, error) {
	switch PostMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBatch:
		return ModeBatch, nil
	case ModePerImage:
		return ModePerImage, nil
	default:
		return "", fmt.Errorf("unknown post mode %q", s)
	}
}

// SelectImages orders sig_ images ahead of the rest, keeping relative order
// within each group, and keeps at most limit of them.
func SelectImages(images []domain.ImageReference, limit int) []domain.ImageReference {
	ordered := slices.Clone(images)
	slices.SortStableFunc(ordered, func(a, b domain.ImageReference) int {
		return priority(a) - priority(b)
	})
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}

func priority(img domain.ImageReference) int {
	if strings.Contains(img.Filename(), priorityToken) {
		return 0
	}
	return 1
}

// BatchText renders the single-post announcement for a run.
func BatchText(run domain.RunLocation) (string, error) {
	day, err := run.ID.Date()
	if err != nil {
		return "", err
	}
	hour, err := run.ID.Hour()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("New tornado forecasts available for %s %sZ run: %s",
		day.Format("2006-01-02"), hour, run.URL), nil
}

// PerImageText renders the announcement for a single image of a run.
func PerImageText(run domain.RunLocation, img domain.ImageReference) string {
	return fmt.Sprintf("Tornado forecast %s: %s\n%s", run.ID, img.Filename(), img)
}

// AltText describes an uploaded image.
func AltText(run domain.RunLocation, img domain.ImageReference) string {
	return fmt.Sprintf("Tornado probability forecast %s for run %s", img.Filename(), run.ID)
}

// Truncate shortens text to limit characters, ending it with an ellipsis.
// Text within the limit is returned unchanged. A limit too small to hold the
// ellipsis yields "".
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	marker := []rune(ellipsis)
	if limit < len(marker) {
		return ""
	}
	return string(runes[:limit-len(marker)]) + ellipsis
}

// Compose builds the post for text, linking uri if it survives truncation.
func Compose(text, uri string, media []domain.UploadedMedia) domain.Post {
	text = Truncate(text, PostLengthLimit)
	post := domain.Post{Text: text, Media: media}
	if uri == "" {
		return post
	}
	if idx := strings.LastIndex(text, uri); idx >= 0 {
		post.Links = []domain.Link{{ByteStart: idx, ByteEnd: idx + len(uri), URI: uri}}
	}
	return post
}
