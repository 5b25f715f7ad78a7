package parser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
	"ForecastPoster/internal/scanner"
)

// DefaultExcludeSubstrings drop the calibration and life-risk variants.
var DefaultExcludeSubstrings = []string{"calibrated", "liferisk"}

// DefaultImageExtension is the extension the source publishes images with.
const DefaultImageExtension = ".png"

// ImageSelector filters a run listing down to tornado probability images.
type ImageSelector struct {
	walker  *Walker
	include *regexp.Regexp
	exclude []string
	logger  *slog.Logger
}

var _ ports.ImageSelector = (*ImageSelector)(nil)

// NewImageSelector builds a selector; empty extension or nil exclusions take the defaults.
func NewImageSelector(walker *Walker, extension string, exclude []string, logger *slog.Logger) *ImageSelector {
	if extension == "" {
		extension = DefaultImageExtension
	}
	if exclude == nil {
		exclude = DefaultExcludeSubstrings
	}
	return &ImageSelector{
		walker:  walker,
		include: TornadoImagePattern(extension),
		exclude: exclude,
		logger:  logger,
	}
}

// TornadoImagePattern matches filenames containing "tornado" (or "sig_tornado")
// that end in extension.
func TornadoImagePattern(extension string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|/)[^/?#]*(?:sig_)?tornado[^/?#]*` + regexp.QuoteMeta(extension) + `$`)
}

// FindImages lists runURL and returns the absolute URLs of publishable images in listing order.
func (s *ImageSelector) FindImages(ctx context.Context, runURL string) ([]domain.ImageReference, error) {
	runURL = ensureDirectory(runURL)
	entries, err := s.walker.List(ctx, runURL)
	if err != nil {
		return nil, fmt.Errorf("list run: %w", err)
	}

	images := s.filter(runURL, entries)
	if s.logger != nil {
		s.logger.Debug("images selected", "url", runURL, "links", len(entries), "images", len(images))
	}
	return images, nil
}

func (s *ImageSelector) filter(base string, entries []scanner.Entry) []domain.ImageReference {
	var (
		images []domain.ImageReference
		seen   = map[string]struct{}{}
	)
	for _, e := range entries {
		if !s.include.MatchString(e.Href) || s.excluded(e.Href) {
			continue
		}
		abs, err := scanner.Resolve(base, e.Href)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skip unresolvable image link", "href", e.Href, "error", err)
			}
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		images = append(images, domain.ImageReference(abs))
	}
	return images
}

func (s *ImageSelector) excluded(href string) bool {
	for _, sub := range s.exclude {
		if sub != "" && strings.Contains(href, sub) {
			return true
		}
	}
	return false
}
