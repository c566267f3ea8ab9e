// Command migrate manages the shopsync PostgreSQL schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/wms/shopsync/internal/infrastructure/config"
	"github.com/wms/shopsync/internal/infrastructure/logger"
	"github.com/wms/shopsync/internal/infrastructure/migration"
	"github.com/wms/shopsync/migrations"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("invalid usage")

func main() {
	var (
		migrationsPath string
		embedded       bool
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Migrations directory")
	flag.BoolVar(&embedded, "embedded", false, "Use the migrations compiled into this binary instead of -path")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		log.Fatal("Invalid migrations path", zap.Error(err))
	}

	cli := &migrateCLI{path: absPath, embedded: embedded, log: log}
	if err := cli.run(args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			printUsage()
			os.Exit(2)
		}
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

type migrateCLI struct {
	path     string
	embedded bool
	log      *zap.Logger
}

func (c *migrateCLI) run(command string, args []string) error {
	switch command {
	case "create":
		return c.create(args)
	case "list":
		return c.list()
	case "up", "down", "step", "goto", "version", "force", "drop":
		return c.withMigrator(func(m *migration.Migrator) error {
			return c.migrate(m, command, args)
		})
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// create and list work on the directory only and need no database
func (c *migrateCLI) create(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create <name> [description]", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(c.path, args[0], description)
	if err != nil {
		return err
	}
	c.log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func (c *migrateCLI) list() error {
	available, err := migration.ListMigrations(c.path)
	if err != nil {
		return err
	}
	if len(available) == 0 {
		c.log.Info("No migrations found", zap.String("path", c.path))
		return nil
	}
	for _, name := range available {
		fmt.Println("  -", name)
	}
	return nil
}

func (c *migrateCLI) source() fs.FS {
	if c.embedded {
		return migrations.FS
	}
	return os.DirFS(c.path)
}

func (c *migrateCLI) withMigrator(fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, c.source(), c.log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			c.log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return fn(m)
}

func (c *migrateCLI) migrate(m *migration.Migrator, command string, args []string) error {
	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		v, err := intArg(args, "goto <version>")
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("%w: version must not be negative", errUsage)
		}
		return m.To(uint(v))
	case "force":
		v, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		return m.Force(v)
	case "drop":
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return fmt.Errorf("%w: drop removes every table; rerun as 'drop -confirm'", errUsage)
		}
		return m.Drop()
	default: // version
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			c.log.Info("No migrations applied")
			return nil
		}
		c.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}
}

func intArg(args []string, usage string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Shopsync schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate up or down to a version
  version               Show the applied version
  force <version>       Mark a version applied and clean after a failed run
  drop -confirm         Drop every table
  create <name> [desc]  Create a new migration file pair
  list                  List migration files

Flags:
  -path string          Migrations directory (default: ./migrations)
  -embedded             Use the migrations compiled into the binary
  -log-level string     debug, info, warn or error (default: info)

Database settings come from config.toml or SHOPSYNC_DATABASE_* variables.`)
}
