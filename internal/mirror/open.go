package mirror

import (
	"context"
	"fmt"

	"github.com/jwalitptl/scribe/pkg/security"
)

type Config struct {
	Driver        string
	Path          string
	Key           string
	RedisURL      string
	EncryptionKey string
}

// Open builds the configured driver.
func Open(ctx context.Context, cfg Config) (Mirror, error) {
	switch cfg.Driver {
	case "", "file":
		var enc security.Encryptor
		if cfg.EncryptionKey != "" {
			var err error
			if enc, err = security.NewEncryptor(cfg.EncryptionKey, "scribe patient mirror"); err != nil {
				return nil, err
			}
		}
		return NewFile(cfg.Path, enc)
	case "redis":
		return NewRedis(ctx, cfg.RedisURL, cfg.Key)
	case "memory":
		return NewMemory(cfg.Key), nil
	default:
		return nil, fmt.Errorf("unknown mirror driver %q", cfg.Driver)
	}
}
