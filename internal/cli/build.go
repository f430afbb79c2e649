// internal/cli/build.go
package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/heliotrack/internal/config"
	"github.com/tamzrod/heliotrack/internal/field"
	fieldmodbus "github.com/tamzrod/heliotrack/internal/field/modbus"
	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/nvstore"
)

// loadConfig runs the full load → validate → normalize sequence.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

// newLogger builds the process logger from a normalized log section.
func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}

	out := w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func fieldMap(cfg *config.Config) field.Map {
	return field.Map{
		SensorBase: cfg.Field.SensorBase,
		ServoBase:  cfg.Field.ServoBase,
		StoreBase:  cfg.Field.StoreBase,
		StoreSize:  cfg.Storage.Size,
	}
}

func dialField(cfg *config.Config) (*fieldmodbus.Client, error) {
	return fieldmodbus.New(fieldmodbus.Config{
		Endpoint: cfg.Field.Endpoint,
		UnitID:   cfg.Field.UnitID,
		Timeout:  time.Duration(cfg.Field.TimeoutMs) * time.Millisecond,
	})
}

// openStorage opens the configured EEPROM backend. cli is only used by
// the modbus backend and may be nil otherwise.
func openStorage(cfg *config.Config, cli field.Client) (hal.ByteStore, func() error, error) {
	nop := func() error { return nil }

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return hal.NewMemStore(cfg.Storage.Size), nop, nil

	case config.BackendFile:
		fs, err := hal.OpenFileStore(cfg.Storage.Path, cfg.Storage.Size)
		if err != nil {
			return nil, nop, err
		}
		return fs, fs.Close, nil

	case config.BackendModbus:
		if cli == nil {
			return nil, nop, errors.New("storage: modbus backend needs a field connection")
		}
		rs, err := field.NewStore(cli, fieldMap(cfg))
		if err != nil {
			return nil, nop, err
		}
		return rs, nop, nil
	}

	return nil, nop, fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
}

func storeOptions(cfg *config.Config, log zerolog.Logger) []nvstore.Option {
	return []nvstore.Option{
		nvstore.WithPrimaryBase(*cfg.Storage.PrimaryBase),
		nvstore.WithBackupBase(*cfg.Storage.BackupBase),
		nvstore.WithLogger(log),
	}
}
