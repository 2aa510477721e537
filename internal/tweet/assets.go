package tweet

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Materializer downloads remote images and renders SVG thumbnails into
// a local cache directory. Target paths are a pure function of the
// tweet id and the remote URL's extension, and an existing file at the
// target path short-circuits all work: staleness against the remote is
// an accepted tradeoff.
type Materializer struct {
	baseDir string
	client  *http.Client
	render  Renderer
	log     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per target path
}

// NewMaterializer returns a Materializer writing under baseDir. client
// may be nil (a default with a timeout is used); render may be nil, in
// which case MaterializeThumbnail fails and callers fall back to the
// default icon.
func NewMaterializer(baseDir string, client *http.Client, render Renderer, logger *zap.Logger) *Materializer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		baseDir: baseDir,
		client:  client,
		render:  render,
		log:     logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// HasRenderer reports whether a thumbnail renderer was injected.
func (m *Materializer) HasRenderer() bool { return m.render != nil }

// ImagePath computes the deterministic local path for a tweet's primary
// image without touching the filesystem or the network.
func (m *Materializer) ImagePath(postID, remoteURL string) string {
	return filepath.Join(m.baseDir, postID+remoteExt(remoteURL))
}

// ThumbnailPath computes the deterministic local path for a tweet's
// rendered SVG thumbnail.
func (m *Materializer) ThumbnailPath(postID string) string {
	return filepath.Join(m.baseDir, postID+".svg")
}

// MaterializeImage downloads the tweet's primary image to its local
// path. If the file already exists the path is returned with no network
// access.
func (m *Materializer) MaterializeImage(postID, remoteURL string) (string, error) {
	target := m.ImagePath(postID, remoteURL)
	unlock := m.lockPath(target)
	defer unlock()

	if existsFile(target) {
		return target, nil
	}
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create cache dir: %v", ErrMaterializeFailed, err)
	}
	if err := m.download(remoteURL, target); err != nil {
		return "", err
	}
	m.log.Debug("materialized image", zap.String("id", postID), zap.String("path", target))
	return target, nil
}

// MaterializeThumbnail caches the author's avatar, invokes the injected
// renderer with the tweet text, author name and local avatar path, and
// persists the rendered SVG. Idempotent on the target path.
func (m *Materializer) MaterializeThumbnail(postID, text, authorName, avatarURL string) (string, error) {
	target := m.ThumbnailPath(postID)
	unlock := m.lockPath(target)
	defer unlock()

	if existsFile(target) {
		return target, nil
	}
	if m.render == nil {
		return "", fmt.Errorf("%w: no thumbnail renderer configured", ErrMaterializeFailed)
	}
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create cache dir: %v", ErrMaterializeFailed, err)
	}

	avatarLocal := ""
	if avatarURL != "" {
		var err error
		avatarLocal, err = m.materializeAvatar(avatarURL)
		if err != nil {
			return "", err
		}
	}

	svg, err := m.render.RenderThumbnail(Thumbnail{
		Text:       text,
		AuthorName: authorName,
		AvatarPath: avatarLocal,
	})
	if err != nil {
		return "", fmt.Errorf("%w: render: %v", ErrMaterializeFailed, err)
	}
	if err := writeAtomic(target, svg); err != nil {
		return "", err
	}
	m.log.Debug("materialized thumbnail", zap.String("id", postID), zap.String("path", target))
	return target, nil
}

// materializeAvatar caches the avatar under its remote filename, shared
// across tweets by the same author.
func (m *Materializer) materializeAvatar(avatarURL string) (string, error) {
	name := remoteFilename(avatarURL)
	if name == "" {
		return "", fmt.Errorf("%w: avatar url %q has no filename", ErrMaterializeFailed, avatarURL)
	}
	target := filepath.Join(m.baseDir, name)
	unlock := m.lockPath(target)
	defer unlock()

	if existsFile(target) {
		return target, nil
	}
	if err := m.download(avatarURL, target); err != nil {
		return "", err
	}
	return target, nil
}

// download fetches remoteURL and publishes the bytes at target via a
// temp file and rename, so a partial download never appears at the
// final path.
func (m *Materializer) download(remoteURL, target string) error {
	resp, err := m.client.Get(remoteURL)
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrMaterializeFailed, remoteURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: get %s: status %d", ErrMaterializeFailed, remoteURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", ErrMaterializeFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: copy %s: %v", ErrMaterializeFailed, remoteURL, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", ErrMaterializeFailed, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrMaterializeFailed, target, err)
	}
	return nil
}

func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".render-*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", ErrMaterializeFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp: %v", ErrMaterializeFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", ErrMaterializeFailed, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrMaterializeFailed, target, err)
	}
	return nil
}

// lockPath serializes the existence-check-then-write sequence per
// target path.
func (m *Materializer) lockPath(target string) func() {
	m.mu.Lock()
	l, ok := m.locks[target]
	if !ok {
		l = &sync.Mutex{}
		m.locks[target] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func existsFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// remoteExt returns the file extension of a remote URL's path,
// defaulting to ".jpg" when the URL carries none.
func remoteExt(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ".jpg"
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return ".jpg"
}

func remoteFilename(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
