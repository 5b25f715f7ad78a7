package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
)

type fakeFetcher struct {
	mu     sync.Mutex
	fail   map[string]error
	panics map[string]bool
	calls  []string
}

func (f *fakeFetcher) Get(_ context.Context, url string) (ports.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.panics[url] {
		panic("fetch " + url)
	}
	if err := f.fail[url]; err != nil {
		return ports.Response{}, err
	}
	return ports.Response{
		Status: http.StatusOK,
		Body:   []byte("img:" + url),
		Header: http.Header{"Content-Type": []string{"image/png"}},
	}, nil
}

type fakeSocial struct {
	mu sync.Mutex

	loginErrs  []error
	uploadErrs map[string][]error
	postErrs   []error

	logins  int
	uploads []string
	posts   []domain.Post
}

func (f *fakeSocial) Login(_ context.Context, identifier, secret string) (ports.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if len(f.loginErrs) > 0 {
		err := f.loginErrs[0]
		f.loginErrs = f.loginErrs[1:]
		if err != nil {
			return ports.Session{}, err
		}
	}
	return ports.Session{DID: "did:plc:" + identifier, AccessToken: secret}, nil
}

func (f *fakeSocial) UploadBlob(_ context.Context, _ ports.Session, data []byte, mimeType string) (domain.BlobRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(data)
	if errs := f.uploadErrs[key]; len(errs) > 0 {
		err := errs[0]
		f.uploadErrs[key] = errs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.uploads = append(f.uploads, key)
	return domain.BlobRef(fmt.Sprintf(`{"data":%q,"mime":%q}`, key, mimeType)), nil
}

func (f *fakeSocial) CreatePost(_ context.Context, _ ports.Session, post domain.Post) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.postErrs) > 0 {
		err := f.postErrs[0]
		f.postErrs = f.postErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.posts = append(f.posts, post)
	return fmt.Sprintf("at://post/%d", len(f.posts)), nil
}

type fakeLocator struct {
	run   domain.RunLocation
	err   error
	calls int
}

func (f *fakeLocator) FindLatestRun(context.Context) (domain.RunLocation, error) {
	f.calls++
	return f.run, f.err
}

type fakeSelector struct {
	images []domain.ImageReference
	err    error
	calls  int
}

func (f *fakeSelector) FindImages(context.Context, string) ([]domain.ImageReference, error) {
	f.calls++
	return f.images, f.err
}

type memoryState struct {
	id       domain.RunIdentifier
	readErr  error
	writeErr error
	writes   int
}

func (m *memoryState) Read(context.Context) (domain.RunIdentifier, error) {
	return m.id, m.readErr
}

func (m *memoryState) Write(_ context.Context, id domain.RunIdentifier) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.id = id
	return nil
}

type fakePublisher struct {
	err     error
	calls   [][]domain.ImageReference
	hook    func()
	lastCtx context.Context
}

func (f *fakePublisher) Publish(ctx context.Context, _ domain.RunLocation, images []domain.ImageReference) error {
	f.lastCtx = ctx
	if f.hook != nil {
		f.hook()
	}
	f.calls = append(f.calls, images)
	return f.err
}

var errTransient = domain.Transient(errors.New("503 service unavailable"))
