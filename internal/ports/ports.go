package ports

import (
	"context"
	"net/http"
	"time"

	"ForecastPoster/internal/domain"
)

// Response is the result of a successful GET.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// Fetcher performs binary-safe GET requests. Non-2xx statuses surface as classified errors.
type Fetcher interface {
	Get(ctx context.Context, url string) (Response, error)
}

// RunLocator resolves the latest forecast run. Returns domain.ErrNotFound when none is listed.
type RunLocator interface {
	FindLatestRun(ctx context.Context) (domain.RunLocation, error)
}

// ImageSelector lists the publishable images inside a run directory.
type ImageSelector interface {
	FindImages(ctx context.Context, runURL string) ([]domain.ImageReference, error)
}

// StateStore persists the last processed run identifier.
// Read returns the zero identifier when nothing has been stored.
type StateStore interface {
	Read(ctx context.Context) (domain.RunIdentifier, error)
	Write(ctx context.Context, id domain.RunIdentifier) error
}

// Session is an authenticated platform session.
type Session struct {
	DID         string
	Handle      string
	AccessToken string
}

// SocialClient is the black-box social platform API.
type SocialClient interface {
	Login(ctx context.Context, identifier, secret string) (Session, error)
	UploadBlob(ctx context.Context, s Session, data []byte, mimeType string) (domain.BlobRef, error)
	CreatePost(ctx context.Context, s Session, post domain.Post) (string, error)
}

// Publisher turns a run and its images into a submitted post.
type Publisher interface {
	Publish(ctx context.Context, run domain.RunLocation, images []domain.ImageReference) error
}

// Metrics receives cycle and publish outcomes.
type Metrics interface {
	CycleStarted()
	CycleFinished(result string, elapsed time.Duration)
	PublishFinished(result string, uploaded int)
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
