package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yashmulik1278/email-assistant-LLM/internal/config"
	"github.com/yashmulik1278/email-assistant-LLM/internal/db"
	"github.com/yashmulik1278/email-assistant-LLM/internal/logging"
)

// Version is set via ldflags at build time.
var Version = "dev"

const dataDir = ".assist"

var (
	configPath string
	dbPath     string
	jsonOutput bool
	quietFlag  bool

	cfg    *config.Config
	logger = zap.NewNop()
	store  *db.DB
)

var rootCmd = &cobra.Command{
	Use:           "assist",
	Short:         "assist - support inbox assistant",
	Long:          "Ingest support emails from Gmail, enrich them with a language model and track them to resolution.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version":
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if quietFlag && cfg.Log.Level == "info" {
			cfg.Log.Level = "warn"
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}

		if cmd.Name() == "init" {
			return nil
		}

		driver, dsn, err := resolveStore()
		if err != nil {
			return err
		}
		store, err = db.Open(driver, dsn)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
}

// execute runs the root command and releases the store and logger however
// the command ends. cobra runs no post-run hooks after a RunE error.
func execute(ctx context.Context) error {
	defer cleanup()
	return rootCmd.ExecuteContext(ctx)
}

func cleanup() {
	if store != nil {
		store.Close()
		store = nil
	}
	logger.Sync()
}

// resolveStore picks the database: --db, then the configured DSN, then a
// .assist/mail.db found above the working directory.
func resolveStore() (driver, dsn string, err error) {
	if dbPath != "" {
		return db.DriverSQLite, dbPath, nil
	}
	if cfg.Database.DSN != "" {
		return cfg.Database.Driver, cfg.Database.DSN, nil
	}
	if path := db.DiscoverDB(); path != "" {
		return db.DriverSQLite, path, nil
	}
	return "", "", fmt.Errorf("no assist database found; run 'assist init' first")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "assist version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the record store (.assist/mail.db, or the configured database)",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, dsn := db.DriverSQLite, dbPath
		switch {
		case dsn != "":
		case cfg.Database.DSN != "":
			driver, dsn = cfg.Database.Driver, cfg.Database.DSN
		default:
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			dsn = filepath.Join(wd, dataDir, "mail.db")
			ensureGitignore(wd)
		}

		s, err := db.Open(driver, dsn)
		if err != nil {
			return err
		}
		s.Close()

		if !quietFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized assist store at %s\n", redactDSN(driver, dsn))
		}
		return nil
	},
}

// redactDSN hides the password in a PostgreSQL connection string.
func redactDSN(driver, dsn string) string {
	if driver == db.DriverSQLite {
		return dsn
	}
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			userinfo := dsn[scheme+3 : at]
			if colon := strings.Index(userinfo, ":"); colon >= 0 {
				return dsn[:scheme+3] + userinfo[:colon] + ":***" + dsn[at:]
			}
		}
	}
	return dsn
}

// ensureGitignore adds .assist/ to .gitignore when it is not already there.
func ensureGitignore(root string) {
	path := filepath.Join(root, ".gitignore")
	entry := dataDir + "/"

	data, err := os.ReadFile(path)
	if err == nil {
		sc := bufio.NewScanner(strings.NewReader(string(data)))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == entry || line == dataDir {
				return
			}
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	if len(data) > 0 && data[len(data)-1] != '\n' {
		f.WriteString("\n")
	}
	fmt.Fprintf(f, "\n# assist record store\n%s\n", entry)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: auto-discover .assist/mail.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
