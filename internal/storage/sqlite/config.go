package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/config"
	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/idgen"
)

// Database-resident config keys.
const (
	IssuePrefixConfigKey     = "issue_prefix"
	AllowedPrefixesConfigKey = "allowed_prefixes"
	CustomStatusConfigKey    = "status.custom"
	CustomTypeConfigKey      = "types.custom"
	MaxCollisionProbKey      = "max_collision_prob"
	MinHashLengthKey         = "min_hash_length"
	MaxHashLengthKey         = "max_hash_length"
)

func setKeyValue(ctx context.Context, exec dbExecutor, table, key, value string) error {
	// #nosec G201 - table is one of two constants
	_, err := exec.ExecContext(ctx, `
		INSERT INTO `+table+` (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrapDBError("set "+table, err)
}

func getKeyValue(ctx context.Context, exec dbExecutor, table, key string) (string, error) {
	var value string
	// #nosec G201 - table is one of two constants
	err := exec.QueryRowContext(ctx, `SELECT value FROM `+table+` WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, wrapDBError("get "+table, err)
}

// SetConfig sets a configuration value
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return setKeyValue(ctx, tx, "config", key, value)
	})
}

// GetConfig gets a configuration value. A missing key yields "".
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	return getKeyValue(ctx, s.db, "config", key)
}

// GetAllConfig gets all configuration key-value pairs
func (s *SQLiteStorage) GetAllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, wrapDBError("query all config", err)
	}
	defer func() { _ = rows.Close() }()

	cfg := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, wrapDBError("scan config row", err)
		}
		cfg[key] = value
	}
	return cfg, wrapDBError("iterate config rows", rows.Err())
}

// DeleteConfig deletes a configuration value
func (s *SQLiteStorage) DeleteConfig(ctx context.Context, key string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key)
		return wrapDBError("delete config", err)
	})
}

// SetMetadata sets a metadata value (internal bookkeeping such as import hashes)
func (s *SQLiteStorage) SetMetadata(ctx context.Context, key, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return setKeyValue(ctx, tx, "metadata", key, value)
	})
}

// GetMetadata gets a metadata value
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	return getKeyValue(ctx, s.db, "metadata", key)
}

// GetCustomStatuses retrieves the comma-separated "status.custom" list, falling
// back to config.yaml when the database has none.
func (s *SQLiteStorage) GetCustomStatuses(ctx context.Context) ([]string, error) {
	return customStatuses(ctx, s.db)
}

// GetCustomTypes retrieves the comma-separated "types.custom" list, falling
// back to config.yaml when the database has none.
func (s *SQLiteStorage) GetCustomTypes(ctx context.Context) ([]string, error) {
	return customTypes(ctx, s.db)
}

func customStatuses(ctx context.Context, exec dbExecutor) ([]string, error) {
	value, err := getKeyValue(ctx, exec, "config", CustomStatusConfigKey)
	if err != nil {
		return nil, err
	}
	if value != "" {
		return parseCommaSeparatedList(value), nil
	}
	return config.GetCustomStatusesFromYAML(), nil
}

func customTypes(ctx context.Context, exec dbExecutor) ([]string, error) {
	value, err := getKeyValue(ctx, exec, "config", CustomTypeConfigKey)
	if err != nil {
		return nil, err
	}
	if value != "" {
		return parseCommaSeparatedList(value), nil
	}
	if yamlTypes := config.GetCustomTypesFromYAML(); len(yamlTypes) > 0 {
		return yamlTypes, nil
	}
	return nil, nil
}

// adaptiveConfig reads the ID length settings, falling back to defaults for
// missing or malformed values.
func adaptiveConfig(ctx context.Context, exec dbExecutor) (idgen.AdaptiveConfig, error) {
	cfg := idgen.DefaultAdaptiveConfig()

	if v, err := getKeyValue(ctx, exec, "config", MaxCollisionProbKey); err != nil {
		return cfg, err
	} else if v != "" {
		if p, perr := strconv.ParseFloat(v, 64); perr == nil && p > 0 && p < 1 {
			cfg.MaxCollisionProbability = p
		} else {
			debug.Logf("sqlite: ignoring invalid %s=%q", MaxCollisionProbKey, v)
		}
	}
	for _, kv := range []struct {
		key string
		dst *int
	}{
		{MinHashLengthKey, &cfg.MinLength},
		{MaxHashLengthKey, &cfg.MaxLength},
	} {
		v, err := getKeyValue(ctx, exec, "config", kv.key)
		if err != nil {
			return cfg, err
		}
		if v == "" {
			continue
		}
		n, perr := strconv.Atoi(v)
		if perr != nil || n < idgen.MinLength || n > idgen.MaxLength {
			debug.Logf("sqlite: ignoring invalid %s=%q", kv.key, v)
			continue
		}
		*kv.dst = n
	}
	if cfg.MinLength > cfg.MaxLength {
		cfg.MinLength = cfg.MaxLength
	}
	return cfg, nil
}

// parseCommaSeparatedList splits a comma-separated string into trimmed,
// non-empty entries.
func parseCommaSeparatedList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
