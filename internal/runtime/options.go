package runtime

import (
	"fmt"
	"log/slog"

	"github.com/failsift/failsift/internal/config"
	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/detect"
	"github.com/failsift/failsift/internal/storage/memory"
	"github.com/failsift/failsift/internal/storage/sqldb"
)

// Option is a functional option for configuring a Detector.
type Option func(*Detector) error

// WithConfig uses an already loaded configuration. No file is watched,
// so the configuration stays fixed for the life of the detector.
func WithConfig(cfg *config.Config) Option {
	return func(d *Detector) error {
		d.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path and watches the file for
// changes while the detector runs.
func WithConfigFile(path string) Option {
	return func(d *Detector) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		d.cfg = cfg
		d.cfgPath = path
		return nil
	}
}

// WithSQLite uses SQLite for both the failure and action stores
// (default for single-instance deployments).
func WithSQLite(dsn string) Option {
	return func(d *Detector) error {
		store, err := sqldb.NewSQLite(dsn)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		d.failures = store
		d.actions = store
		return nil
	}
}

// WithPostgres uses PostgreSQL storage. The binary must link a postgres
// database/sql driver.
func WithPostgres(dsn string) Option {
	return func(d *Detector) error {
		store, err := sqldb.New(sqldb.Config{Driver: "postgres", DSN: dsn})
		if err != nil {
			return fmt.Errorf("create postgres storage: %w", err)
		}
		d.failures = store
		d.actions = store
		return nil
	}
}

// WithMySQL uses MySQL storage. The binary must link a mysql
// database/sql driver.
func WithMySQL(dsn string) Option {
	return func(d *Detector) error {
		store, err := sqldb.New(sqldb.Config{Driver: "mysql", DSN: dsn})
		if err != nil {
			return fmt.Errorf("create mysql storage: %w", err)
		}
		d.failures = store
		d.actions = store
		return nil
	}
}

// WithMemoryStore keeps failures and actions in process memory. Nothing
// survives a restart; intended for tests and local experiments.
func WithMemoryStore() Option {
	return func(d *Detector) error {
		store := memory.New()
		d.failures = store
		d.actions = store
		return nil
	}
}

// WithConfiguredStorage opens the storage backend named by the
// configuration. The config option must come first.
func WithConfiguredStorage() Option {
	return func(d *Detector) error {
		if d.cfg == nil {
			return fmt.Errorf("config must be set before storage")
		}

		if d.cfg.Storage.Driver == "memory" {
			store := memory.New()
			d.failures = store
			d.actions = store
			return nil
		}

		store, err := sqldb.New(sqldb.Config{
			Driver: d.cfg.Storage.Driver,
			DSN:    d.cfg.Storage.DSN,
		})
		if err != nil {
			return fmt.Errorf("open %s storage: %w", d.cfg.Storage.Driver, err)
		}
		d.failures = store
		d.actions = store
		return nil
	}
}

// WithFailureStore sets a custom failure store.
func WithFailureStore(store ports.FailureStore) Option {
	return func(d *Detector) error {
		d.failures = store
		return nil
	}
}

// WithActionStore sets a custom action store.
func WithActionStore(store ports.ActionStore) Option {
	return func(d *Detector) error {
		d.actions = store
		return nil
	}
}

// WithNotifier sets a custom notification sink, overriding the sink
// named by the configuration.
func WithNotifier(n ports.Notifier) Option {
	return func(d *Detector) error {
		d.notifier = n
		return nil
	}
}

// WithClusterInvoker sets a custom clustering backend. Takes precedence
// over the configured endpoint and the local pipeline.
func WithClusterInvoker(invoker ports.ClusterInvoker) Option {
	return func(d *Detector) error {
		d.invoker = invoker
		return nil
	}
}

// WithEngine sets a custom detection engine, bypassing the one built
// from configuration.
func WithEngine(engine *detect.Engine) Option {
	return func(d *Detector) error {
		d.engine = engine
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) error {
		d.logger = logger
		return nil
	}
}
