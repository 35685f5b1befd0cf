package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

type Options struct {
	DataDir     string
	DatabaseURL string
	LogLevel    string
	Environment string
}

// Open returns the PostgreSQL store when DatabaseURL is set and the file store
// under DataDir otherwise.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (Store, error) {
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		s, err := OpenGormStore(ctx, opts.DatabaseURL, opts.LogLevel, opts.Environment)
		if err != nil {
			return nil, err
		}
		log.Info().Str("backend", "postgres").Msg("article store opened")
		return s, nil
	}

	s, err := OpenFileStore(opts.DataDir)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", "file").Str("dir", opts.DataDir).Msg("article store opened")
	return s, nil
}
