package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
	"ForecastPoster/internal/retry"
)

// Stage names a publisher step for error reporting.
type Stage string

const (
	StageAuth     Stage = "auth"
	StageSelect   Stage = "select"
	StageDownload Stage = "download"
	StageUpload   Stage = "upload"
	StageCompose  Stage = "compose"
	StageSubmit   Stage = "submit"
)

// PublishError carries the step that ended a publish.
type PublishError struct {
	Stage Stage
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PublisherConfig holds credentials and retry settings.
type PublisherConfig struct {
	Identifier     string
	Secret         string
	MaxImages      int
	MaxAttempts    int
	RetryDelay     time.Duration
	RateLimitDelay time.Duration
	Mode           PostMode
}

// PublisherDeps wires the driven adapters.
type PublisherDeps struct {
	Client  ports.SocialClient
	Fetcher ports.Fetcher
	Metrics ports.Metrics
	Logger  *slog.Logger
}

// Publisher authenticates, downloads, uploads and submits one post per call.
type Publisher struct {
	cfg     PublisherConfig
	client  ports.SocialClient
	fetcher ports.Fetcher
	metrics ports.Metrics
	logger  *slog.Logger
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher constructs the publisher; MaxImages is clamped to the platform cap.
func NewPublisher(cfg PublisherConfig, deps PublisherDeps) *Publisher {
	if cfg.MaxImages <= 0 || cfg.MaxImages > MaxImagesPerPost {
		cfg.MaxImages = MaxImagesPerPost
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBatch
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		cfg:     cfg,
		client:  deps.Client,
		fetcher: deps.Fetcher,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Publish runs the full pipeline for run. Download and upload failures drop
// single images; the publish fails only when no image survives a step.
func (p *Publisher) Publish(ctx context.Context, run domain.RunLocation, images []domain.ImageReference) error {
	log := p.logger.With("run_id", run.ID)
	uploaded := 0
	err := p.publish(ctx, log, run, images, &uploaded)
	if p.metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		p.metrics.PublishFinished(result, uploaded)
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, log *slog.Logger, run domain.RunLocation, images []domain.ImageReference, uploaded *int) error {
	log.Debug("publisher state", "state", "authenticating")
	session, err := p.authenticate(ctx, log)
	if err != nil {
		return &PublishError{Stage: StageAuth, Err: err}
	}

	log.Debug("publisher state", "state", "selecting_images", "candidates", len(images))
	selected := SelectImages(images, p.cfg.MaxImages)
	if len(selected) == 0 {
		return &PublishError{Stage: StageSelect, Err: errors.New("no images to publish")}
	}
	if len(selected) < len(images) {
		log.Info("image cap applied", "candidates", len(images), "kept", len(selected))
	}

	log.Debug("publisher state", "state", "downloading", "images", len(selected))
	downloaded := p.download(ctx, log, selected)
	if len(downloaded) == 0 {
		return &PublishError{Stage: StageDownload, Err: errors.New("every image download failed")}
	}

	log.Debug("publisher state", "state", "uploading", "images", len(downloaded))
	media := p.upload(ctx, log, run, session, downloaded)
	*uploaded = len(media)
	if len(media) == 0 {
		return &PublishError{Stage: StageUpload, Err: errors.New("every image upload failed")}
	}

	log.Debug("publisher state", "state", "composing")
	post, err := p.compose(run, selected, media)
	if err != nil {
		return &PublishError{Stage: StageCompose, Err: err}
	}

	log.Debug("publisher state", "state", "submitting", "media", len(post.Media))
	uri, err := p.submit(ctx, log, session, post)
	if err != nil {
		return &PublishError{Stage: StageSubmit, Err: err}
	}

	log.Info("post published", "uri", uri, "images", len(post.Media))
	return nil
}

func (p *Publisher) policy(log *slog.Logger, stage Stage, rateLimitDelay time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts:    p.cfg.MaxAttempts,
		Delay:          p.cfg.RetryDelay,
		RateLimitDelay: rateLimitDelay,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn("publish step failed, retrying", "stage", stage, "attempt", attempt, "wait", wait, "error", err)
		},
	}
}

func (p *Publisher) authenticate(ctx context.Context, log *slog.Logger) (ports.Session, error) {
	var session ports.Session
	err := retry.Do(ctx, p.policy(log, StageAuth, 0), func(ctx context.Context) error {
		s, err := p.client.Login(ctx, p.cfg.Identifier, p.cfg.Secret)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	return session, err
}

// download fetches every image concurrently; the result keeps the input order.
// A failed or panicking download only drops its own image.
func (p *Publisher) download(ctx context.Context, log *slog.Logger, images []domain.ImageReference) []domain.DownloadedImage {
	results := make([]*domain.DownloadedImage, len(images))

	var g errgroup.Group
	for i, img := range images {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error("image download panicked, dropping", "stage", StageDownload, "url", img, "panic", r)
					results[i] = nil
				}
			}()

			resp, err := p.fetcher.Get(ctx, string(img))
			if err != nil {
				log.Warn("image download failed, dropping", "stage", StageDownload, "url", img, "error", err)
				return nil
			}
			if len(resp.Body) == 0 {
				log.Warn("image download empty, dropping", "stage", StageDownload, "url", img)
				return nil
			}
			results[i] = &domain.DownloadedImage{
				Ref:      img,
				Data:     resp.Body,
				MimeType: mimeType(resp),
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.DownloadedImage, 0, len(images))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (p *Publisher) upload(ctx context.Context, log *slog.Logger, run domain.RunLocation, s ports.Session, images []domain.DownloadedImage) []domain.UploadedMedia {
	media := make([]domain.UploadedMedia, 0, len(images))
	for _, img := range images {
		var blob domain.BlobRef
		err := retry.Do(ctx, p.policy(log.With("url", img.Ref), StageUpload, 0), func(ctx context.Context) error {
			ref, err := p.client.UploadBlob(ctx, s, img.Data, img.MimeType)
			if err != nil {
				return err
			}
			blob = ref
			return nil
		})
		if err != nil {
			log.Warn("image upload failed, dropping", "stage", StageUpload, "url", img.Ref, "error", err)
			continue
		}
		media = append(media, domain.UploadedMedia{Blob: blob, AltText: AltText(run, img.Ref)})
	}
	return media
}

func (p *Publisher) compose(run domain.RunLocation, selected []domain.ImageReference, media []domain.UploadedMedia) (domain.Post, error) {
	if p.cfg.Mode == ModePerImage {
		img := selected[0]
		return Compose(PerImageText(run, img), string(img), media), nil
	}

	text, err := BatchText(run)
	if err != nil {
		return domain.Post{}, err
	}
	return Compose(text, run.URL, media), nil
}

func (p *Publisher) submit(ctx context.Context, log *slog.Logger, s ports.Session, post domain.Post) (string, error) {
	var uri string
	err := retry.Do(ctx, p.policy(log, StageSubmit, p.cfg.RateLimitDelay), func(ctx context.Context) error {
		u, err := p.client.CreatePost(ctx, s, post)
		if err != nil {
			return err
		}
		uri = u
		return nil
	})
	return uri, err
}

func mimeType(resp ports.Response) string {
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		return strings.TrimSpace(ct)
	}
	return http.DetectContentType(resp.Body)
}
