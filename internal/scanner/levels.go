package scanner

// Level names for the run directory tree.
const (
	LevelMonth = "month"
	LevelDay   = "day"
	LevelRun   = "run"
)

// DefaultLevels returns the month (YYYYMM), day (YYYYMMDD) and run (tNNz) patterns.
func DefaultLevels() *Registry {
	return NewRegistry(
		NewPattern(LevelMonth, `(?:^|/)(\d{6})/?$`),
		NewPattern(LevelDay, `(?:^|/)(\d{8})/?$`),
		NewPattern(LevelRun, `(?:^|/)(t\d{2}z)/?$`),
	)
}
