package tweet

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// protectedQuery is the query string Twitter appends to the redirect it
// issues for tweets from protected accounts.
const protectedQuery = "protected_redirect=true"

// Validator confirms that a matched tweet URL is publicly reachable.
// It only recognizes the platform's protected-account redirect; it
// never parses tweet content.
type Validator struct {
	client *http.Client
	log    *zap.Logger
}

// NewValidator returns a Validator. client may be nil, in which case a
// default client with redirect-following disabled is used. A non-nil
// client must also have redirect-following disabled.
func NewValidator(client *http.Client, logger *zap.Logger) *Validator {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{client: client, log: logger}
}

// Validate issues one GET to matchedURL without following redirects.
// A redirect whose Location query string is exactly
// "protected_redirect=true" yields an UnreachableError with reason
// "protected"; a transport failure yields reason "network_error". Any
// other response, including a plain 200, is treated as reachable.
// Runs synchronously at input-validation time.
func (v *Validator) Validate(matchedURL string) error {
	// Matched spans may be protocol-relative.
	if strings.HasPrefix(matchedURL, "//") {
		matchedURL = "https:" + matchedURL
	}
	resp, err := v.client.Get(matchedURL)
	if err != nil {
		v.log.Debug("visibility check failed", zap.String("url", matchedURL), zap.Error(err))
		return &UnreachableError{Reason: ReasonNetworkError, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc, err := url.Parse(resp.Header.Get("Location"))
		if err == nil && loc.RawQuery == protectedQuery {
			v.log.Info("tweet is protected", zap.String("url", matchedURL))
			return &UnreachableError{Reason: ReasonProtected}
		}
	}
	return nil
}
