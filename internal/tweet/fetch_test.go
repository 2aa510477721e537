package tweet

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// rewriteTransport redirects all HTTP requests to a local httptest
// server, allowing us to test code that targets hardcoded external
// URLs.
type rewriteTransport struct {
	base   http.RoundTripper
	target string // e.g., "http://127.0.0.1:PORT"
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(rt.target, "http://")
	return rt.base.RoundTrip(req)
}

func rewriteClient(target string) *http.Client {
	return &http.Client{Transport: rewriteTransport{base: http.DefaultTransport, target: target}}
}

func tweetJSON(id, text string, retweets int, imageURL string) string {
	media := ""
	if imageURL != "" {
		media = fmt.Sprintf(`,"extended_entities":{"media":[{"media_url_https":%q}]}`, imageURL)
	}
	return fmt.Sprintf(`{"id_str":%q,"text":%q,"retweet_count":%d,
		"user":{"screen_name":"alice","name":"Alice","profile_image_url_https":"https://pbs.twimg.com/profile_images/1/avatar.png"}%s}`,
		id, text, retweets, media)
}

func TestFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "statuses/show") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		id := r.URL.Query().Get("id")
		fmt.Fprint(w, tweetJSON(id, "hello world", 7, "https://pbs.twimg.com/media/img.png"))
	}))
	defer srv.Close()

	f := NewFetcher(AuthCredentials{}, rewriteClient(srv.URL), nil)
	rec, err := f.Fetch("123")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "123" {
		t.Errorf("ID = %q, want 123", rec.ID)
	}
	if rec.AuthorHandle != "alice" || rec.AuthorName != "Alice" {
		t.Errorf("author = %q/%q, want alice/Alice", rec.AuthorHandle, rec.AuthorName)
	}
	if rec.Text != "hello world" || rec.RetweetCount != 7 {
		t.Errorf("text/retweets = %q/%d", rec.Text, rec.RetweetCount)
	}
	if rec.ImageURL != "https://pbs.twimg.com/media/img.png" {
		t.Errorf("image = %q", rec.ImageURL)
	}
	if rec.AuthorAvatar == "" {
		t.Error("expected avatar URL")
	}
}

func TestFetcherFetch_NoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tweetJSON("5", "text only", 0, ""))
	}))
	defer srv.Close()

	f := NewFetcher(AuthCredentials{}, rewriteClient(srv.URL), nil)
	rec, err := f.Fetch("5")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty", rec.ImageURL)
	}
}

func TestFetcherCacheKeyedByID(t *testing.T) {
	// The cache is keyed by tweet id: two distinct ids each get their
	// own record, and a repeated id does not hit the network again.
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		id := r.URL.Query().Get("id")
		fmt.Fprint(w, tweetJSON(id, "tweet "+id, 0, ""))
	}))
	defer srv.Close()

	f := NewFetcher(AuthCredentials{}, rewriteClient(srv.URL), nil)

	first, err := f.Fetch("111")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.Fetch("222")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != "222" || second.Text != "tweet 222" {
		t.Errorf("second fetch returned wrong record: %+v", second)
	}
	if first.ID == second.ID {
		t.Error("distinct ids returned the same record")
	}

	again, err := f.Fetch("111")
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Error("repeated fetch did not come from cache")
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 upstream calls, got %d", n)
	}
}

func TestFetcherFailureNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(500)
			fmt.Fprint(w, `{"errors":[{"code":131,"message":"Internal error"}]}`)
			return
		}
		fmt.Fprint(w, tweetJSON("9", "recovered", 1, ""))
	}))
	defer srv.Close()

	f := NewFetcher(AuthCredentials{}, rewriteClient(srv.URL), nil)

	if _, err := f.Fetch("9"); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}

	// A later call may retry and succeed.
	fail.Store(false)
	rec, err := f.Fetch("9")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Text != "recovered" {
		t.Errorf("Text = %q, want recovered", rec.Text)
	}
}

func TestFetcherBadID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be issued for a non-numeric id")
	}))
	defer srv.Close()

	f := NewFetcher(AuthCredentials{}, rewriteClient(srv.URL), nil)
	if _, err := f.Fetch("not-a-number"); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetcherUnavailable(t *testing.T) {
	// Incomplete credentials and no injected client: the fetcher is
	// constructed unavailable and every call fails with ErrFetchFailed.
	f := NewFetcher(AuthCredentials{ConsumerKey: "only-this"}, nil, nil)
	if f.Available() {
		t.Fatal("fetcher should be unavailable without full credentials")
	}
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch("123"); !errors.Is(err, ErrFetchFailed) {
			t.Fatalf("expected ErrFetchFailed, got %v", err)
		}
	}
}

func TestFetcherConcurrentSameID(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, tweetJSON("77", "shared", 0, ""))
	}))
	defer srv.Close()

	f := NewFetcher(AuthCredentials{}, rewriteClient(srv.URL), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch("77"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single collapsed upstream call, got %d", n)
	}
}
