// Catalog Session - client-side session core for the catalog app.
//
// This is the main entry point. It restores the persisted session, serves the
// navigation console, and optionally mirrors the identity onto MQTT and
// exchange telemetry into InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/catalog-session/migrations"

	"github.com/nerrad567/catalog-session/internal/audit"
	"github.com/nerrad567/catalog-session/internal/authapi"
	"github.com/nerrad567/catalog-session/internal/console"
	"github.com/nerrad567/catalog-session/internal/credstore"
	"github.com/nerrad567/catalog-session/internal/identitybus"
	"github.com/nerrad567/catalog-session/internal/infrastructure/config"
	"github.com/nerrad567/catalog-session/internal/infrastructure/database"
	"github.com/nerrad567/catalog-session/internal/infrastructure/influxdb"
	"github.com/nerrad567/catalog-session/internal/infrastructure/logging"
	"github.com/nerrad567/catalog-session/internal/infrastructure/mqtt"
	"github.com/nerrad567/catalog-session/internal/navigation"
	"github.com/nerrad567/catalog-session/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: each optional component adds a branch
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting catalog session",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Credential store, and the audit trail when it has a database to live in
	var store credstore.Store
	var auditRepo audit.Repository
	checks := make(map[string]console.HealthChecker)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		store = credstore.NewMemoryStore()
		log.Warn("credential store is in memory; sessions end with the process")
	default:
		db, openErr := database.Open(database.Config{
			Path:        cfg.Store.Path,
			WALMode:     cfg.Store.WALMode,
			BusyTimeout: cfg.Store.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening credential store: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		store = credstore.NewSQLiteStore(db.DB, cfg.Store.Namespace)
		repo := audit.NewSQLiteRepository(db.DB)
		if days := cfg.Store.AuditRetention; days > 0 {
			cutoff := time.Now().AddDate(0, 0, -days)
			if n, pruneErr := repo.Prune(ctx, cutoff); pruneErr != nil {
				log.Warn("pruning audit trail failed", "error", pruneErr)
			} else if n > 0 {
				log.Info("audit trail pruned", "removed", n, "retention_days", days)
			}
		}
		auditRepo = repo
		checks["database"] = db
		log.Info("credential store opened", "path", cfg.Store.Path, "namespace", cfg.Store.Namespace)
	}

	// Optional brokers connect concurrently
	mqttClient, influxClient, err := connectOptional(ctx, cfg, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
		defer func() {
			stats := influxClient.Stats()
			log.Info("closing InfluxDB connection",
				"points_queued", stats.PointsQueued,
				"write_errors", stats.WriteErrors,
			)
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	exchanger, err := authapi.New(authapi.Config{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.GetServerTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating auth client: %w", err)
	}

	var recorder session.Recorder
	if auditRepo != nil || influxClient != nil {
		deps := audit.RecorderDeps{Repo: auditRepo, Logger: log}
		if influxClient != nil {
			deps.Metrics = influxClient
		}
		recorder = audit.NewRecorder(deps)
	}

	mgr, err := session.NewManager(session.Deps{
		Store:       store,
		Exchanger:   exchanger,
		Logger:      log,
		Recorder:    recorder,
		PublicEntry: cfg.Console.PublicEntry,
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	missingRoles, err := navigation.ParseMissingRolesPolicy(cfg.Navigation.MissingRoles)
	if err != nil {
		return fmt.Errorf("navigation: %w", err)
	}
	nav := navigation.New(mgr, nil, navigation.Config{
		PublicEntry:  cfg.Console.PublicEntry,
		Unauthorized: cfg.Console.Unauthorized,
		MissingRoles: missingRoles,
		Logger:       log,
	})
	mgr.SetRedirector(nav)

	// An unreadable store leaves the session anonymous; that is not fatal.
	if startErr := mgr.Start(ctx); startErr != nil {
		log.Error("restoring session failed, starting anonymous", "error", startErr)
	}
	if identity := mgr.CurrentIdentity(); identity != nil {
		log.Info("session restored", "user_id", identity.ID, "role", identity.Role)
		nav.Navigate(navigation.PathDashboard)
	}

	if mqttClient != nil {
		bus, busErr := identitybus.New(identitybus.Deps{
			Broker:   mqttClient,
			Session:  mgr,
			Topics:   mqttClient.Topics(),
			ClientID: mqttClient.ClientID(),
			Logger:   log,
		})
		if busErr != nil {
			return fmt.Errorf("creating identity bus: %w", busErr)
		}
		if startErr := bus.Start(ctx); startErr != nil {
			return fmt.Errorf("starting identity bus: %w", startErr)
		}
		defer func() {
			if closeErr := bus.Close(); closeErr != nil {
				log.Error("error closing identity bus", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			bus.Republish()
		})
	}

	catalog, err := console.NewCatalogProxy(cfg.Server.BaseURL, mgr)
	if err != nil {
		return fmt.Errorf("creating catalog proxy: %w", err)
	}
	srv, err := console.New(console.Deps{
		Config:    cfg.Console,
		Logger:    log,
		Session:   mgr,
		Navigator: nav,
		Audit:     auditRepo,
		Catalog:   catalog,
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating console: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting console: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing console", "error", closeErr)
		}
	}()
	log.Info("console listening", "address", srv.Addr())

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("catalog session stopped")
	return nil
}

// connectOptional connects to the enabled MQTT broker and InfluxDB in
// parallel. If either fails, whichever connected is closed again.
//
// Returns:
//   - *mqtt.Client: nil when mqtt is disabled
//   - *influxdb.Client: nil when influxdb is disabled
//   - error: First connection failure
func connectOptional(ctx context.Context, cfg *config.Config, log *logging.Logger) (*mqtt.Client, *influxdb.Client, error) {
	var mqttClient *mqtt.Client
	var influxClient *influxdb.Client

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MQTT.Enabled {
		g.Go(func() error {
			c, err := mqtt.Connect(gctx, cfg.MQTT)
			if err != nil {
				return fmt.Errorf("connecting to MQTT: %w", err)
			}
			c.SetLogger(log)
			c.SetOnDisconnect(func(err error) {
				log.Warn("MQTT disconnected", "error", err)
			})
			mqttClient = c
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
			return nil
		})
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		g.Go(func() error {
			c, err := influxdb.Connect(gctx, cfg.InfluxDB)
			if err != nil {
				return fmt.Errorf("connecting to InfluxDB: %w", err)
			}
			c.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			influxClient = c
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
			return nil
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := g.Wait(); err != nil {
		if mqttClient != nil {
			mqttClient.Close() //nolint:errcheck // startup already failed
		}
		if influxClient != nil {
			influxClient.Close() //nolint:errcheck // startup already failed
		}
		return nil, nil, err
	}
	return mqttClient, influxClient, nil
}

// getConfigPath returns the configuration file path.
// Uses CATALOG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CATALOG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
