package tweet

import (
	"strconv"

	"go.uber.org/zap"
)

// Field names a virtual attribute of a resolved reference. The set is
// closed: Resolve handles every constant below and nothing else.
type Field string

const (
	// Cheap fields, answered from the Reference without network I/O.
	FieldID   Field = "id"
	FieldUser Field = "user"

	// Remote fields, requiring UseRemoteAPI and a successful fetch.
	FieldContent      Field = "content"
	FieldRetweetCount Field = "retweet_count"
	FieldImage        Field = "image"
	FieldImageLocal   Field = "image_local"
	// FieldImageLocalURI is the deterministic local path for the
	// tweet's image, computed without forcing materialization and
	// without checking that the file exists.
	FieldImageLocalURI Field = "image_local_uri"
	FieldThumbnail     Field = "thumbnail"
)

// Fields returns all resolvable fields in a stable order.
func Fields() []Field {
	return []Field{
		FieldID, FieldUser, FieldContent, FieldRetweetCount,
		FieldImage, FieldImageLocal, FieldImageLocalURI, FieldThumbnail,
	}
}

// ResolverConfig carries the host-supplied knobs for field resolution.
type ResolverConfig struct {
	// UseRemoteAPI gates every field beyond id and user. When false,
	// remote fields resolve to absent regardless of reachability.
	UseRemoteAPI bool

	// DefaultIconPath is the static fallback returned by the thumbnail
	// field when no better tier is available.
	DefaultIconPath string
}

// Resolver answers "give me virtual field X for this input text". All
// failures past the match step degrade to absent values; resolution is
// never fatal to the host's rendering.
type Resolver struct {
	fetcher *Fetcher
	assets  *Materializer
	cfg     ResolverConfig
	log     *zap.Logger
}

// NewResolver wires a Resolver. logger may be nil.
func NewResolver(fetcher *Fetcher, assets *Materializer, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, assets: assets, cfg: cfg, log: logger}
}

// Resolve returns the value of field for the given input text. The
// second return is false when the field is absent: no reference in the
// input, remote API disabled, fetch failure, or the record simply not
// carrying the requested sub-value.
func (r *Resolver) Resolve(input string, field Field) (string, bool) {
	ref, ok := Match(input)
	if !ok {
		return "", false
	}

	switch field {
	case FieldID:
		return ref.ID, true
	case FieldUser:
		if ref.User == "" {
			return "", false
		}
		return ref.User, true
	}

	if !r.cfg.UseRemoteAPI {
		return "", false
	}
	rec, err := r.fetcher.Fetch(ref.ID)
	if err != nil {
		r.log.Debug("remote field degraded to absent",
			zap.String("field", string(field)), zap.String("id", ref.ID), zap.Error(err))
		return "", false
	}

	switch field {
	case FieldContent:
		return rec.Text, rec.Text != ""
	case FieldRetweetCount:
		return strconv.Itoa(rec.RetweetCount), true
	case FieldImage:
		return rec.ImageURL, rec.ImageURL != ""
	case FieldImageLocal:
		if rec.ImageURL == "" {
			return "", false
		}
		p, err := r.assets.MaterializeImage(ref.ID, rec.ImageURL)
		if err != nil {
			r.log.Warn("image materialization failed", zap.String("id", ref.ID), zap.Error(err))
			return "", false
		}
		return p, true
	case FieldImageLocalURI:
		if rec.ImageURL == "" {
			return "", false
		}
		return r.assets.ImagePath(ref.ID, rec.ImageURL), true
	case FieldThumbnail:
		return r.thumbnail(ref, rec)
	}
	return "", false
}

// thumbnail applies the tiered fallback: a materialized local copy of
// the tweet's image, else the remote image URL, else a rendered SVG
// card when the tweet has text and a renderer is configured, else the
// host's default icon.
func (r *Resolver) thumbnail(ref Reference, rec *PostRecord) (string, bool) {
	if rec.ImageURL != "" {
		p, err := r.assets.MaterializeImage(ref.ID, rec.ImageURL)
		if err == nil {
			return p, true
		}
		r.log.Warn("thumbnail materialization failed; using remote URL",
			zap.String("id", ref.ID), zap.Error(err))
		return rec.ImageURL, true
	}

	if rec.Text != "" && r.assets.HasRenderer() {
		p, err := r.assets.MaterializeThumbnail(ref.ID, rec.Text, rec.AuthorName, rec.AuthorAvatar)
		if err == nil {
			return p, true
		}
		r.log.Warn("thumbnail render failed; using default icon",
			zap.String("id", ref.ID), zap.Error(err))
	}

	if r.cfg.DefaultIconPath != "" {
		return r.cfg.DefaultIconPath, true
	}
	return "", false
}
