package registry

import (
	"context"
	"fmt"

	"github.com/hargabyte/stableid/internal/config"
)

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.RegistryConfig) (Backend, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileBackend(cfg.Path), nil
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN)
	case BackendS3:
		return OpenS3(ctx, S3Config{
			Bucket:    cfg.S3.Bucket,
			Key:       cfg.S3.Key,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown registry backend: %q", cfg.Backend)
	}
}
