package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"helioscope/internal/config"
	"helioscope/internal/gateway"
	"helioscope/internal/inference"
	"helioscope/internal/ratelimit"
	"helioscope/internal/store"
	"helioscope/internal/tiles"
)

// newGateway wires tile fetching, inference and persistence from settings
func newGateway(ctx context.Context, s *config.UserSettings, limits *ratelimit.Tracker) (*tiles.Fetcher, *gateway.Service, error) {
	fetcher, err := tiles.NewFetcher(tiles.Options{
		Workers:      s.TileWorkers,
		Timeout:      s.TileTimeout(),
		CacheEntries: s.TileCacheEntries,
		GoogleAPIKey: s.GoogleAPIKey,
		RateLimits:   limits,
	})
	if err != nil {
		return nil, nil, err
	}

	return fetcher, gateway.NewService(fetcher, newInferrer(s), newStore(ctx, s)), nil
}

func newInferrer(s *config.UserSettings) gateway.Inferrer {
	if s.InferenceMode == config.InferenceExec {
		log.Printf("Inference: local runner %s %s (model %s)", s.PythonPath, s.ModelRunnerPath, s.ModelPath)
		return inference.NewExecRunner(s.PythonPath, s.ModelRunnerPath, s.ModelPath, "")
	}
	log.Printf("Inference: model service at %s", s.InferenceURL)
	return inference.NewHTTPClient(s.InferenceURL, s.InferenceRequestTimeout())
}

// newStore opens the configured result store. A store that cannot be opened
// is replaced by the no-op store so analysis keeps working; saves then report it.
func newStore(ctx context.Context, s *config.UserSettings) store.Store {
	st, err := openStore(ctx, s)
	if err != nil {
		log.Printf("Failed to open %s store, results will not be persisted: %v", s.StoreKind, err)
		return store.NewNoopStore()
	}
	log.Printf("Result store: %s", s.StoreKind)
	return st
}

func openStore(ctx context.Context, s *config.UserSettings) (store.Store, error) {
	switch s.StoreKind {
	case config.StoreFile:
		return store.NewFileStore(filepath.Join(s.OutputDir, "store"))
	case config.StoreS3:
		return store.NewS3Store(store.S3Config{
			Endpoint:  s.S3.Endpoint,
			Region:    s.S3.Region,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			Bucket:    s.S3.Bucket,
			UseSSL:    s.S3.UseSSL,
			Prefix:    "helioscope",
		})
	case config.StorePostgres:
		if s.PostgresURL == "" {
			return nil, fmt.Errorf("postgres URL is not set")
		}
		return store.NewPostgresStore(ctx, s.PostgresURL)
	case config.StoreNone, "":
		return store.NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", s.StoreKind)
	}
}
