package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// defaultMigrationsPath is where create writes new files when -path is not set
const defaultMigrationsPath = "migrations"

var errUsage = errors.New("invalid usage")

// invocation carries everything a command needs
type invocation struct {
	args   []string
	path   string
	log    *zap.Logger
	cfg    *config.Config
	schema *migration.Migrator
}

func (inv *invocation) arg(i int, what string) (string, error) {
	if len(inv.args) <= i {
		return "", fmt.Errorf("%w: %s required", errUsage, what)
	}
	return inv.args[i], nil
}

type command struct {
	offline bool // runs without a database connection
	run     func(inv *invocation) error
}

var commands = map[string]command{
	"up":   {run: func(inv *invocation) error { return inv.schema.Up() }},
	"down": {run: func(inv *invocation) error { return inv.schema.Down() }},
	"step": {run: func(inv *invocation) error {
		raw, err := inv.arg(1, "step count")
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: step count %q", errUsage, raw)
		}
		return inv.schema.Steps(n)
	}},
	"goto": {run: func(inv *invocation) error {
		raw, err := inv.arg(1, "version")
		if err != nil {
			return err
		}
		version, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, raw)
		}
		return inv.schema.GoTo(uint(version))
	}},
	"force": {run: func(inv *invocation) error {
		raw, err := inv.arg(1, "version")
		if err != nil {
			return err
		}
		version, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, raw)
		}
		inv.log.Warn("Forcing schema version, the database is not checked", zap.Int("version", version))
		return inv.schema.Force(version)
	}},
	"version": {run: func(inv *invocation) error {
		version, dirty, err := inv.schema.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			inv.log.Info("Schema is empty")
			return nil
		}
		inv.log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}},
	"create": {offline: true, run: func(inv *invocation) error {
		name, err := inv.arg(1, "migration name")
		if err != nil {
			return err
		}
		description := ""
		if len(inv.args) > 2 {
			description = inv.args[2]
		}
		dir := inv.path
		if dir == "" {
			dir = defaultMigrationsPath
		}
		mf, err := migration.CreateMigration(dir, name, description)
		if err != nil {
			return err
		}
		inv.log.Info("Migration files written",
			zap.Uint("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	}},
	"list": {offline: true, run: func(inv *invocation) error {
		found, err := migration.ListMigrations(migration.Source(inv.path))
		if err != nil {
			return err
		}
		inv.log.Info("Migrations", zap.String("source", sourceName(inv.path)), zap.Int("count", len(found)))
		for _, m := range found {
			fmt.Printf("  %06d %s\n", m.Version, m.Name)
		}
		return nil
	}},
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
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

	inv := &invocation{args: args, path: migrationsPath, log: log}
	err = run(cmd, inv)
	_ = logger.Sync(log)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		printUsage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(cmd command, inv *invocation) error {
	if cmd.offline {
		return cmd.run(inv)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	inv.cfg = cfg

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}

	schema, err := migration.NewWithSource(db, migration.Source(inv.path), inv.log)
	if err != nil {
		return err
	}
	defer schema.Close()
	inv.schema = schema

	inv.log.Info("Running migration command",
		zap.String("command", inv.args[0]),
		zap.String("source", sourceName(inv.path)),
		zap.String("database", cfg.Database.DBName),
	)
	return cmd.run(inv)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Portal schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  version               Show the applied version
  force <version>       Mark a version as applied after a failed run
  create <name> [desc]  Write the next numbered up/down pair
  list                  List available migrations

Flags:
  -path string          Read migrations from a directory (default: embedded)
  -log-level string     debug, info, warn or error (default: info)

Database settings come from PORTAL_DATABASE_* variables or config.yaml.`)
}
