package tweet

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// fetchCacheSize bounds the id-keyed fetch cache. The historical
// implementation memoized a single record regardless of id, which
// returned the wrong tweet for any second id resolved in the same
// process; the cache here is keyed by tweet id instead.
const fetchCacheSize = 128

// Fetcher retrieves tweets from the v1.1 statuses/show endpoint with
// OAuth1 request signing. Successful fetches are cached by tweet id;
// failures are never cached, so a later call may retry. Concurrent
// fetches for the same id are collapsed into one request.
type Fetcher struct {
	client *twitter.Client
	cache  *lru.Cache[string, *PostRecord]
	group  singleflight.Group
	log    *zap.Logger

	warnOnce sync.Once
}

// NewFetcher builds a Fetcher from credentials. httpClient overrides
// the OAuth1-signed client when non-nil (tests use this); logger may be
// nil. When the credentials are incomplete and no client is supplied,
// the fetcher is constructed in an unavailable state: the first Fetch
// logs a warning and every call fails with ErrFetchFailed.
func NewFetcher(creds AuthCredentials, httpClient *http.Client, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New[string, *PostRecord](fetchCacheSize)
	f := &Fetcher{cache: cache, log: logger}

	if httpClient == nil && creds.Complete() {
		config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
		token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
		httpClient = config.Client(context.Background(), token)
	}
	if httpClient != nil {
		f.client = twitter.NewClient(httpClient)
	}
	return f
}

// Available reports whether the fetcher has a usable API client.
func (f *Fetcher) Available() bool { return f != nil && f.client != nil }

// Fetch returns the record for postID, from cache when possible.
func (f *Fetcher) Fetch(postID string) (*PostRecord, error) {
	if !f.Available() {
		f.warnOnce.Do(func() {
			f.log.Warn("twitter client unavailable; remote fields will not resolve")
		})
		return nil, fmt.Errorf("%w: client unavailable", ErrFetchFailed)
	}

	if rec, ok := f.cache.Get(postID); ok {
		return rec, nil
	}

	v, err, _ := f.group.Do(postID, func() (interface{}, error) {
		if rec, ok := f.cache.Get(postID); ok {
			return rec, nil
		}
		rec, err := f.fetchRemote(postID)
		if err != nil {
			return nil, err
		}
		f.cache.Add(postID, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PostRecord), nil
}

func (f *Fetcher) fetchRemote(postID string) (*PostRecord, error) {
	id, err := strconv.ParseInt(postID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad tweet id %q: %v", ErrFetchFailed, postID, err)
	}

	tw, _, err := f.client.Statuses.Show(id, &twitter.StatusShowParams{})
	if err != nil {
		f.log.Debug("statuses/show failed", zap.String("id", postID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	rec := &PostRecord{
		ID:           tw.IDStr,
		Text:         tw.Text,
		RetweetCount: tw.RetweetCount,
	}
	if rec.ID == "" {
		rec.ID = postID
	}
	if tw.User != nil {
		rec.AuthorHandle = tw.User.ScreenName
		rec.AuthorName = tw.User.Name
		rec.AuthorAvatar = tw.User.ProfileImageURLHttps
	}
	if tw.ExtendedEntities != nil && len(tw.ExtendedEntities.Media) > 0 {
		m := tw.ExtendedEntities.Media[0]
		rec.ImageURL = m.MediaURLHttps
		if rec.ImageURL == "" {
			rec.ImageURL = m.MediaURL
		}
	}
	return rec, nil
}
