// Package tweet resolves references to tweets (URLs or embed markup)
// into structured, cacheable data: a stable id, the author handle, the
// text, engagement counters, and locally materialized image assets.
package tweet

import (
	"errors"
	"fmt"
)

// Reference is the parsed author handle and tweet id extracted from
// input text. It is derivable from valid input without any network
// call.
type Reference struct {
	// User is the author's screen name. Empty if the matching pattern
	// did not capture one.
	User string

	// ID is the numeric tweet id as a string.
	ID string

	// Span is the exact substring of the input that matched.
	Span string
}

// CanonicalURL rebuilds the canonical status URL for the reference.
func (r Reference) CanonicalURL() string {
	return "https://twitter.com/" + r.User + "/statuses/" + r.ID
}

// PostRecord is the remote API's representation of a tweet, reduced to
// the fields the resolver consumes. Treated as read-only once fetched.
type PostRecord struct {
	ID           string
	AuthorHandle string
	AuthorName   string
	AuthorAvatar string // remote profile image URL
	Text         string
	RetweetCount int
	ImageURL     string // primary attached image; empty when the tweet has none
}

// AuthCredentials holds the OAuth1 application and user tokens used to
// sign statuses/show requests.
type AuthCredentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Complete reports whether all four tokens are present.
func (c AuthCredentials) Complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" &&
		c.AccessToken != "" && c.AccessSecret != ""
}

// Outcome errors. Field resolution degrades on ErrFetchFailed and
// ErrMaterializeFailed rather than propagating them to the host.
var (
	ErrFetchFailed       = errors.New("tweet fetch failed")
	ErrMaterializeFailed = errors.New("asset materialization failed")
)

// Reasons carried by UnreachableError.
const (
	ReasonProtected    = "protected"
	ReasonNetworkError = "network_error"
)

// UnreachableError reports that a tweet could not be confirmed as
// publicly visible. Produced only at validation time; it rejects the
// input rather than degrading a field.
type UnreachableError struct {
	Reason string // ReasonProtected or ReasonNetworkError
	Err    error
}

func (e *UnreachableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tweet unreachable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("tweet unreachable (%s)", e.Reason)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
