package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mattn/go-isatty"
	"golang.org/x/oauth2"

	"hrexport/internal/auth"
	"hrexport/internal/config"
	"hrexport/internal/export"
	"hrexport/internal/garmin"
	"hrexport/internal/logging"
	"hrexport/internal/store"
	"hrexport/internal/tui"
)

const usage = `Usage: hrexport [-config path] [-v] [date]

Exports a day of Garmin Connect heart rate, HRV, stress and sleep data, and the
share of the day spent in each configured heart rate zone.

date is any common date format (2024-03-01, 03/01/2024, "1 March 2024");
it defaults to today.

Flags:
`

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configPath, *verbose, flag.Args()); err != nil {
		logger := logging.New(os.Stderr, logging.Options{})
		logger.Error("export failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, verbose bool, args []string) error {
	day, err := parseDay(args, time.Now())
	if err != nil {
		return err
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(configPath); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		fmt.Printf("\nPlease review the heart rate zones in:\n  %s\n\n", configPath)
		fmt.Println("Then run hrexport again.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s\n", configPath)
		return nil
	}

	cfg, err = cfg.EnsureDirs()
	if err != nil {
		return fmt.Errorf("preparing directories: %w", err)
	}

	logOpts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if verbose {
		logOpts.Level = "debug"
	}
	logger := logging.New(os.Stderr, logOpts)
	logger.Debug("configuration loaded", "config", configPath, "export_dir", cfg.ExportDir, "token_dir", cfg.TokenDir)

	// Open database
	db, err := store.Open(cfg.TokenDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if last, err := db.GetSyncState(store.KeyLastExportDay); err == nil && last != "" {
		logger.Debug("previous export", "day", last)
	}

	apiURL := garmin.APIURL(cfg.Garmin.Domain)
	lookup := func(ctx context.Context, ts oauth2.TokenSource) (string, error) {
		profile, err := garmin.NewClient(apiURL, ts, cfg.Garmin.Timeout).Profile(ctx)
		if err != nil {
			return "", err
		}
		return profile.DisplayName, nil
	}

	endpoints := auth.EndpointsFor(cfg.Garmin.Domain, cfg.Garmin.Timeout)
	if cfg.Garmin.ConsumerKey != "" {
		endpoints.Consumer = auth.Consumer{Key: cfg.Garmin.ConsumerKey, Secret: cfg.Garmin.ConsumerSecret}
	}

	session, err := auth.NewSession(endpoints, db, lookup, logger)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	if !session.IsAuthenticated(ctx) {
		if err := signIn(ctx, session); err != nil {
			return fmt.Errorf("authentication: %w", err)
		}
		fmt.Printf("Signed in as %s\n", session.DisplayName())
	}

	ts, err := session.TokenSource()
	if err != nil {
		return fmt.Errorf("getting token source: %w", err)
	}
	client := garmin.NewClient(apiURL, ts, cfg.Garmin.Timeout)

	exporter := export.NewExporter(client, db, export.Options{
		Zones:              cfg.ZoneList(),
		ExportDir:          cfg.ExportDir,
		DisplayName:        session.DisplayName(),
		SleepBufferMinutes: cfg.Garmin.SleepBufferMinutes,
		WriteMetrics:       cfg.Metrics.Textfile,
	}, logger, os.Stdout)

	result, err := exporter.Run(ctx, day)
	if errors.Is(err, garmin.ErrUnauthorized) || errors.Is(err, auth.ErrSessionExpired) {
		if clearErr := db.ClearAuth(); clearErr != nil {
			logger.Warn("could not clear stored session", "error", clearErr)
		}
		fmt.Println("Garmin rejected the stored session. Run hrexport again to sign in.")
		return err
	}
	if err != nil {
		return err
	}
	logger.Debug("api requests", "count", client.Requests())

	fmt.Print(tui.RenderSummary(result))
	return nil
}

// parseDay returns the day named by the optional positional argument
func parseDay(args []string, now time.Time) (time.Time, error) {
	switch len(args) {
	case 0:
		return now, nil
	case 1:
		day, err := dateparse.ParseLocal(args[0])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", args[0], err)
		}
		return day, nil
	default:
		return time.Time{}, fmt.Errorf("expected at most one date argument, got %d", len(args))
	}
}

// signIn takes credentials from the environment, or prompts for them when
// attached to a terminal, and authenticates the session
func signIn(ctx context.Context, session *auth.Session) error {
	email, password, ok := config.CredentialsFromEnv()
	creds := auth.Credentials{Email: email, Password: password}

	if !ok {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return fmt.Errorf("no stored session; set %s and %s or run interactively", config.EnvEmail, config.EnvPassword)
		}
		fmt.Println("No Garmin session found. Please sign in.")
		var err error
		creds, err = tui.PromptCredentials(os.Stdin, os.Stdout, email)
		if err != nil {
			return err
		}
	}

	return session.Authenticate(ctx, creds)
}
