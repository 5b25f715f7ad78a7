package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/infrastructure/httpclient"
)

type listingServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	pages map[string][]string
}

func newListingServer(t *testing.T, pages map[string][]string) *listingServer {
	t.Helper()
	ls := &listingServer{hits: map[string]int{}, pages: pages}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.mu.Lock()
		ls.hits[r.URL.Path]++
		ls.mu.Unlock()

		links, ok := ls.pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var b strings.Builder
		b.WriteString(`<html><body><h1>Index</h1><pre><a href="?C=N;O=D">Name</a> <a href="../">Parent Directory</a>`)
		for _, l := range links {
			fmt.Fprintf(&b, `<a href="%s">%s</a>`+"\n", l, l)
		}
		b.WriteString(`</pre></body></html>`)
		_, _ = w.Write([]byte(b.String()))
	}))
	t.Cleanup(ls.Close)
	return ls
}

func (ls *listingServer) totalHits() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	n := 0
	for _, v := range ls.hits {
		n += v
	}
	return n
}

func newWalker() *Walker {
	return NewWalker(httpclient.New(httpclient.Options{}, nil), nil)
}

func TestFindLatestRunThreeLevels(t *testing.T) {
	t.Parallel()

	srv := newListingServer(t, map[string][]string{
		"/root/":                 {"202503/", "202504/"},
		"/root/202504/":          {"20250407/", "20250408/"},
		"/root/202504/20250408/": {"t00z/"},
	})

	loc := NewRunLocator(newWalker(), nil, srv.URL+"/root", nil)
	run, err := loc.FindLatestRun(context.Background())
	if err != nil {
		t.Fatalf("FindLatestRun: %v", err)
	}
	if run.ID != "20250408_t00z" {
		t.Fatalf("unexpected run id %s", run.ID)
	}
	if run.URL != srv.URL+"/root/202504/20250408/t00z/" {
		t.Fatalf("unexpected run url %s", run.URL)
	}
	if got := srv.totalHits(); got != 3 {
		t.Fatalf("expected 3 listing fetches, got %d", got)
	}
}

func TestFindLatestRunTwoLevels(t *testing.T) {
	t.Parallel()

	srv := newListingServer(t, map[string][]string{
		"/":          {"20250407/", "20250408/", "2025049/"},
		"/20250408/": {"t00z/", "t12z/", "t6z/"},
	})

	loc := NewRunLocator(newWalker(), nil, srv.URL, nil)
	run, err := loc.FindLatestRun(context.Background())
	if err != nil {
		t.Fatalf("FindLatestRun: %v", err)
	}
	if run.ID != "20250408_t12z" {
		t.Fatalf("unexpected run id %s", run.ID)
	}
}

func TestFindLatestRunNotFound(t *testing.T) {
	t.Parallel()

	cases := map[string]map[string][]string{
		"empty root": {"/": {}},
		"empty day":  {"/": {"202504/"}, "/202504/": {"20250408/"}, "/202504/20250408/": {"readme.txt"}},
		"depth skip": {"/": {"202504/"}, "/202504/": {"t00z/"}},
	}
	for name, pages := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newListingServer(t, pages)
			_, err := NewRunLocator(newWalker(), nil, srv.URL+"/", nil).FindLatestRun(context.Background())
			if !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestFindLatestRunFetchError(t *testing.T) {
	t.Parallel()

	srv := newListingServer(t, map[string][]string{"/": {"202504/"}})
	_, err := NewRunLocator(newWalker(), nil, srv.URL, nil).FindLatestRun(context.Background())
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestFindImagesFiltersAndResolves(t *testing.T) {
	t.Parallel()

	srv := newListingServer(t, map[string][]string{
		"/run/": {
			"tornado_f024.png",
			"sig_tornado_f024.png",
			"tornado_calibrated_f024.png",
			"sig_tornado_liferisk_f024.png",
			"hail_f024.png",
			"tornado_f024.gif",
			"tornado_f024.png",
			"/abs/path/tornado_f036.png",
		},
	})

	sel := NewImageSelector(newWalker(), "", nil, nil)
	images, err := sel.FindImages(context.Background(), srv.URL+"/run")
	if err != nil {
		t.Fatalf("FindImages: %v", err)
	}

	want := []domain.ImageReference{
		domain.ImageReference(srv.URL + "/run/tornado_f024.png"),
		domain.ImageReference(srv.URL + "/run/sig_tornado_f024.png"),
		domain.ImageReference(srv.URL + "/abs/path/tornado_f036.png"),
	}
	if len(images) != len(want) {
		t.Fatalf("expected %d images, got %d: %v", len(want), len(images), images)
	}
	for i := range want {
		if images[i] != want[i] {
			t.Fatalf("image %d: want %s, got %s", i, want[i], images[i])
		}
	}
}

func TestFindImagesEmpty(t *testing.T) {
	t.Parallel()

	srv := newListingServer(t, map[string][]string{"/run/": {"hail.png", "wind.png"}})
	images, err := NewImageSelector(newWalker(), "", nil, nil).FindImages(context.Background(), srv.URL+"/run/")
	if err != nil {
		t.Fatalf("FindImages: %v", err)
	}
	if len(images) != 0 {
		t.Fatalf("expected no images, got %v", images)
	}
}

func TestParseEntries(t *testing.T) {
	t.Parallel()

	entries, err := parseEntries(strings.NewReader(`<a href=" 20250408/ ">20250408/</a><a>no href</a><a href="">empty</a>`))
	if err != nil {
		t.Fatalf("parseEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Href != "20250408/" || entries[0].Name != "20250408/" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
