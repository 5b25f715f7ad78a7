package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
	"ForecastPoster/internal/scanner"
)

// expectedDepth is the month/day/run layout; anything else is logged once.
const expectedDepth = 3

// RunLocator walks the root listing down to the newest tNNz run directory.
// The tree may be month/day/run or day/run; each listing is classified by
// which level pattern its links satisfy.
type RunLocator struct {
	walker    *Walker
	levels    *scanner.Registry
	rootURL   string
	logger    *slog.Logger
	lastDepth atomic.Int32
}

var _ ports.RunLocator = (*RunLocator)(nil)

// NewRunLocator builds a locator rooted at rootURL; nil levels means scanner.DefaultLevels.
func NewRunLocator(walker *Walker, levels *scanner.Registry, rootURL string, logger *slog.Logger) *RunLocator {
	if levels == nil {
		levels = scanner.DefaultLevels()
	}
	return &RunLocator{
		walker:  walker,
		levels:  levels,
		rootURL: ensureDirectory(rootURL),
		logger:  logger,
	}
}

// next lists the levels that may follow each level.
var next = map[string][]string{
	"":                 {scanner.LevelMonth, scanner.LevelDay},
	scanner.LevelMonth: {scanner.LevelDay},
	scanner.LevelDay:   {scanner.LevelRun},
}

// FindLatestRun resolves the latest run or returns domain.ErrNotFound.
func (r *RunLocator) FindLatestRun(ctx context.Context) (domain.RunLocation, error) {
	var (
		current = r.rootURL
		level   string
		date    string
		path    []string
	)

	for depth := 1; ; depth++ {
		allowed, ok := next[level]
		if !ok {
			return domain.RunLocation{}, fmt.Errorf("no level may follow %s", level)
		}

		entries, err := r.walker.List(ctx, current)
		if err != nil {
			return domain.RunLocation{}, fmt.Errorf("level %d: %w", depth, err)
		}

		p, ok := r.levels.Classify(entries, allowed...)
		if !ok {
			r.reportUnmatched(current, depth, entries, allowed)
			return domain.RunLocation{}, domain.ErrNotFound
		}

		match, err := scanner.Latest(current, entries, p)
		if err != nil {
			return domain.RunLocation{}, fmt.Errorf("level %d %s: %w", depth, p.Name, err)
		}
		path = append(path, p.Name)

		switch p.Name {
		case scanner.LevelDay:
			date = match.Token
		case scanner.LevelRun:
			r.noteDepth(depth, path)
			loc := domain.RunLocation{
				ID:  domain.NewRunIdentifier(date, match.Token),
				URL: ensureDirectory(match.URL),
			}
			r.debug("latest run resolved", "run_id", loc.ID, "url", loc.URL)
			return loc, nil
		}

		level = p.Name
		current = ensureDirectory(match.URL)
	}
}

func (r *RunLocator) reportUnmatched(listingURL string, depth int, entries []scanner.Entry, allowed []string) {
	if r.logger == nil {
		return
	}
	for _, name := range []string{scanner.LevelMonth, scanner.LevelDay, scanner.LevelRun} {
		p, err := r.levels.Resolve(name)
		if err != nil || scanner.Count(entries, p) == 0 {
			continue
		}
		r.logger.Warn("unexpected directory depth",
			"url", listingURL,
			"depth", depth,
			"found", name,
			"expected", strings.Join(allowed, "|"))
		return
	}
	r.logger.Debug("no matching directories", "url", listingURL, "depth", depth, "expected", strings.Join(allowed, "|"))
}

func (r *RunLocator) noteDepth(depth int, path []string) {
	prev := r.lastDepth.Swap(int32(depth))
	if prev == int32(depth) || r.logger == nil {
		return
	}
	if depth != expectedDepth {
		r.logger.Info("directory layout differs from month/day/run", "depth", depth, "layout", strings.Join(path, "/"))
		return
	}
	if prev != 0 {
		r.logger.Info("directory layout changed", "depth", depth, "layout", strings.Join(path, "/"))
	}
}

func (r *RunLocator) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
