// Package config loads tweetmedia configuration from the environment.
package config

import (
	"os"
	"strconv"

	"tweetmedia/internal/tweet"
)

// Config holds all host-supplied configuration.
type Config struct {
	// Credentials sign statuses/show requests. May be incomplete; the
	// fetcher then runs in its unavailable state.
	Credentials tweet.AuthCredentials

	// UseRemoteAPI enables the fields that require the Twitter API.
	UseRemoteAPI bool

	// CacheDir is where images, avatars and thumbnails are
	// materialized.
	CacheDir string

	// DefaultIconPath is the thumbnail fallback of last resort.
	DefaultIconPath string

	// DBPath, when set, is the sqlite database the resolve CLI records
	// resolutions into.
	DBPath string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Credentials: tweet.AuthCredentials{
			ConsumerKey:    os.Getenv("X_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("X_CONSUMER_SECRET"),
			AccessToken:    os.Getenv("X_ACCESS_TOKEN"),
			AccessSecret:   os.Getenv("X_ACCESS_SECRET"),
		},
		UseRemoteAPI:    envBool("TWEETMEDIA_USE_API"),
		CacheDir:        envOr("TWEETMEDIA_CACHE_DIR", "./tweet-cache"),
		DefaultIconPath: os.Getenv("TWEETMEDIA_DEFAULT_ICON"),
		DBPath:          os.Getenv("TWEETMEDIA_DB"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}
