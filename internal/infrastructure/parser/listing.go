package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
	"ForecastPoster/internal/scanner"
)

// Walker fetches directory listings and picks their latest child.
type Walker struct {
	fetcher ports.Fetcher
	logger  *slog.Logger
}

// NewWalker wires the HTTP collaborator.
func NewWalker(fetcher ports.Fetcher, logger *slog.Logger) *Walker {
	return &Walker{fetcher: fetcher, logger: logger}
}

// List fetches listingURL and returns every hyperlink on the page.
func (w *Walker) List(ctx context.Context, listingURL string) ([]scanner.Entry, error) {
	resp, err := w.fetcher.Get(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	entries, err := parseEntries(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", listingURL, err)
	}

	w.debug("listing fetched", "url", listingURL, "links", len(entries))
	return entries, nil
}

func parseEntries(r io.Reader) ([]scanner.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("parse document: %w", err))
	}

	var entries []scanner.Entry
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		entries = append(entries, scanner.Entry{
			Name: strings.TrimSpace(a.Text()),
			Href: href,
		})
	})
	return entries, nil
}

// ensureDirectory appends a trailing slash so relative hrefs resolve beneath u.
func ensureDirectory(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

func (w *Walker) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
