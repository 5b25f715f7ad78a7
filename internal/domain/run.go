package domain

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const runIDSeparator = "_"

var (
	dateTokenExpr = regexp.MustCompile(`^\d{8}$`)
	timeTokenExpr = regexp.MustCompile(`^t(\d{2})z$`)
)

// RunIdentifier names a single forecast run, e.g. "20250408_t00z".
// It is compared for equality only.
type RunIdentifier string

// NewRunIdentifier joins a date token and a time code into the canonical form.
func NewRunIdentifier(date, timeCode string) RunIdentifier {
	return RunIdentifier(date + runIDSeparator + timeCode)
}

// ParseRunIdentifier splits a canonical identifier back into its date and time code.
func ParseRunIdentifier(id RunIdentifier) (date, timeCode string, err error) {
	date, timeCode, ok := strings.Cut(string(id), runIDSeparator)
	if !ok {
		return "", "", fmt.Errorf("run identifier %q: missing separator", id)
	}
	if !dateTokenExpr.MatchString(date) {
		return "", "", fmt.Errorf("run identifier %q: invalid date token %q", id, date)
	}
	if !timeTokenExpr.MatchString(timeCode) {
		return "", "", fmt.Errorf("run identifier %q: invalid time code %q", id, timeCode)
	}
	return date, timeCode, nil
}

// String implements fmt.Stringer.
func (r RunIdentifier) String() string {
	return string(r)
}

// IsZero reports whether the identifier is empty (no run).
func (r RunIdentifier) IsZero() bool {
	return strings.TrimSpace(string(r)) == ""
}

// Date returns the run date in UTC.
func (r RunIdentifier) Date() (time.Time, error) {
	date, _, err := ParseRunIdentifier(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102", date)
}

// Hour returns the two-digit hour of the run, e.g. "00" for t00z.
func (r RunIdentifier) Hour() (string, error) {
	_, timeCode, err := ParseRunIdentifier(r)
	if err != nil {
		return "", err
	}
	return timeTokenExpr.FindStringSubmatch(timeCode)[1], nil
}

// RunLocation is the resolved latest run and the listing that holds its images.
type RunLocation struct {
	ID  RunIdentifier
	URL string
}

// ImageReference is an absolute URL to a candidate image.
type ImageReference string

// Filename returns the last path segment of the image URL.
func (i ImageReference) Filename() string {
	raw := string(i)
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		raw = raw[:idx]
	}
	return path.Base(raw)
}

// DownloadedImage holds fetched image bytes for upload.
type DownloadedImage struct {
	Ref      ImageReference
	Data     []byte
	MimeType string
}

// BlobRef is the opaque handle returned by the platform for an uploaded blob.
type BlobRef []byte

// UploadedMedia pairs an uploaded blob with its alt text.
type UploadedMedia struct {
	Blob    BlobRef
	AltText string
}

// Post is the composed text and media submitted to the platform.
type Post struct {
	Text  string
	Media []UploadedMedia
	Links []Link
}

// Link marks a URL inside Post.Text by byte offsets.
type Link struct {
	ByteStart int
	ByteEnd   int
	URI       string
}
