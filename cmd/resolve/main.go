// Command resolve takes a tweet URL or embed code, checks that the
// tweet is publicly visible, resolves the requested virtual fields and
// optionally records the resolution in a sqlite database.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"tweetmedia/internal/config"
	"tweetmedia/internal/tweet"
)

var (
	fieldsFlag = flag.String("fields", "", "comma-separated fields to resolve (default all)")
	noValidate = flag.Bool("no-validate", false, "skip the tweet visibility check")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	cfg := config.Load()
	dryRun := os.Getenv("DRY_RUN") == "1"

	input, err := readInput()
	must(err)

	ref, ok := tweet.Match(input)
	if !ok {
		log.Fatal("input does not contain a recognizable tweet reference")
	}

	fields, err := parseFields(*fieldsFlag)
	must(err)

	if dryRun {
		fmt.Println("DRY RUN (no network calls)")
		fmt.Printf("id: %s\nuser: %s\nurl: %s\n", ref.ID, ref.User, ref.CanonicalURL())
		return
	}

	logger, err := zap.NewProduction()
	must(err)
	defer logger.Sync()

	if !*noValidate {
		validator := tweet.NewValidator(nil, logger)
		if err := validator.Validate(ref.Span); err != nil {
			log.Fatalf("tweet rejected: %v", err)
		}
	}

	fetcher := tweet.NewFetcher(cfg.Credentials, nil, logger)
	assets := tweet.NewMaterializer(cfg.CacheDir, nil, tweet.NewSVGRenderer(), logger)
	resolver := tweet.NewResolver(fetcher, assets, tweet.ResolverConfig{
		UseRemoteAPI:    cfg.UseRemoteAPI,
		DefaultIconPath: cfg.DefaultIconPath,
	}, logger)

	values := make(map[tweet.Field]string)
	for _, f := range fields {
		if v, ok := resolver.Resolve(input, f); ok {
			values[f] = v
			fmt.Printf("%s: %s\n", f, v)
		} else {
			fmt.Printf("%s: (absent)\n", f)
		}
	}

	if cfg.DBPath != "" {
		db, err := sql.Open("sqlite", cfg.DBPath)
		must(err)
		defer db.Close()
		must(db.Ping())
		must(recordResolution(context.Background(), db, ref, values))
		log.Printf("recorded resolution of tweet %s", ref.ID)
	}
}

func readInput() (string, error) {
	if flag.NArg() > 0 {
		return flag.Arg(0), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func parseFields(spec string) ([]tweet.Field, error) {
	if strings.TrimSpace(spec) == "" {
		return tweet.Fields(), nil
	}
	known := make(map[tweet.Field]bool)
	for _, f := range tweet.Fields() {
		known[f] = true
	}
	var out []tweet.Field
	for _, chunk := range strings.Split(spec, ",") {
		f := tweet.Field(strings.TrimSpace(chunk))
		if f == "" {
			continue
		}
		if !known[f] {
			return nil, fmt.Errorf("unknown field %q", f)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return tweet.Fields(), nil
	}
	return out, nil
}

func recordResolution(ctx context.Context, db *sql.DB, ref tweet.Reference, values map[tweet.Field]string) error {
	const schema = `CREATE TABLE IF NOT EXISTS resolved_tweets (
		tweet_id      TEXT PRIMARY KEY,
		screen_name   TEXT NOT NULL,
		content       TEXT,
		retweet_count INTEGER,
		image_path    TEXT,
		resolved_at   TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	retweets := 0
	if v, ok := values[tweet.FieldRetweetCount]; ok {
		retweets, _ = strconv.Atoi(v)
	}
	imagePath := values[tweet.FieldImageLocal]
	if imagePath == "" {
		imagePath = values[tweet.FieldThumbnail]
	}

	_, err := db.ExecContext(ctx, `INSERT INTO resolved_tweets
		(tweet_id, screen_name, content, retweet_count, image_path, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tweet_id) DO UPDATE SET
			screen_name = excluded.screen_name,
			content = excluded.content,
			retweet_count = excluded.retweet_count,
			image_path = excluded.image_path,
			resolved_at = excluded.resolved_at`,
		ref.ID, ref.User, values[tweet.FieldContent], retweets, imagePath,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert resolution: %w", err)
	}
	return nil
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
