package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schemaVersionKey = keyPrefix + "schema:version"

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, client *redis.Client) error
}

// Migrate runs every migration newer than the stored schema version.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	migrations := getMigrations()
	target := migrations[len(migrations)-1].Version
	if currentVersion >= target {
		if logger != nil {
			logger.Debugw("schema is up to date", "version", currentVersion)
		}
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration",
				"version", migration.Version,
				"description", migration.Description,
			)
		}
		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", target)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "active session index is a sorted set scored by expiry",
			Up: func(ctx context.Context, client *redis.Client) error {
				key := keyPrefix + "session:active"
				kind, err := client.Type(ctx, key).Result()
				if err != nil {
					return err
				}
				if kind != "none" && kind != "zset" {
					return client.Del(ctx, key).Err()
				}
				return nil
			},
		},
	}
}
