package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/infrastructure/httpclient"
	"ForecastPoster/internal/ports"
)

const (
	// DefaultServiceURL is the public PDS entryway.
	DefaultServiceURL = "https://bsky.social"

	createSessionPath = "/xrpc/com.atproto.server.createSession"
	uploadBlobPath    = "/xrpc/com.atproto.repo.uploadBlob"
	createRecordPath  = "/xrpc/com.atproto.repo.createRecord"

	postCollection = "app.bsky.feed.post"
	defaultTimeout = 30 * time.Second
)

// Client talks to a Bluesky PDS over XRPC.
type Client struct {
	http *resty.Client
	now  func() time.Time
}

var _ ports.SocialClient = (*Client)(nil)

// NewClient builds a client for serviceURL with the given request timeout.
func NewClient(serviceURL string, timeout time.Duration) *Client {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(serviceURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		now: time.Now,
	}
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Login exchanges an identifier and app password for a session.
func (c *Client) Login(ctx context.Context, identifier, secret string) (ports.Session, error) {
	if identifier == "" || secret == "" {
		return ports.Session{}, domain.Permanent(errors.New("bluesky credentials missing"))
	}

	var out struct {
		DID       string `json:"did"`
		Handle    string `json:"handle"`
		AccessJwt string `json:"accessJwt"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"identifier": identifier, "password": secret}).
		SetResult(&out).
		SetError(&xrpcError{}).
		Post(createSessionPath)
	if err := classify(ctx, "create session", resp, err); err != nil {
		return ports.Session{}, err
	}
	if out.AccessJwt == "" || out.DID == "" {
		return ports.Session{}, domain.Permanent(errors.New("create session: empty session in response"))
	}

	return ports.Session{DID: out.DID, Handle: out.Handle, AccessToken: out.AccessJwt}, nil
}

// UploadBlob stores data on the PDS and returns the blob reference to embed.
func (c *Client) UploadBlob(ctx context.Context, s ports.Session, data []byte, mimeType string) (domain.BlobRef, error) {
	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(s.AccessToken).
		SetHeader("Content-Type", mimeType).
		SetBody(data).
		SetResult(&out).
		SetError(&xrpcError{}).
		Post(uploadBlobPath)
	if err := classify(ctx, "upload blob", resp, err); err != nil {
		return nil, err
	}
	if len(out.Blob) == 0 {
		return nil, domain.Permanent(errors.New("upload blob: no blob in response"))
	}
	return domain.BlobRef(out.Blob), nil
}

// CreatePost writes an app.bsky.feed.post record and returns its at:// URI.
func (c *Client) CreatePost(ctx context.Context, s ports.Session, post domain.Post) (string, error) {
	body := map[string]any{
		"repo":       s.DID,
		"collection": postCollection,
		"record":     buildRecord(post, c.now().UTC()),
	}

	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(s.AccessToken).
		SetBody(body).
		SetResult(&out).
		SetError(&xrpcError{}).
		Post(createRecordPath)
	if err := classify(ctx, "create record", resp, err); err != nil {
		return "", err
	}
	return out.URI, nil
}

func classify(ctx context.Context, op string, resp *resty.Response, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, fmt.Errorf("%s: %w", op, err))
		}
		return domain.Transient(fmt.Errorf("%s: %w", op, err))
	}

	if xe, ok := resp.Error().(*xrpcError); ok && xe != nil && xe.Error == "RateLimitExceeded" {
		return domain.RateLimited(fmt.Errorf("%s: %s", op, xe.Message))
	}
	if cerr := httpclient.ClassifyStatus(resp.StatusCode(), resp.Status(), resp.String()); cerr != nil {
		return fmt.Errorf("%s: %w", op, cerr)
	}
	return nil
}
