package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"expense-guard/internal/auth"
	"expense-guard/internal/config"
	"expense-guard/internal/ledger"
	"expense-guard/internal/log"
	"expense-guard/internal/mail"
	"expense-guard/internal/storage"

	"golang.org/x/term"
)

// newSender builds the mail transport; tests replace it.
var newSender = mail.New

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if auth.IsInvalidOrExpired(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address to send the code to")
	dbPath := fs.String("db", "", "Path to SQLite database file (overrides DB_PATH)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stdout, "Usage: login -email <address> [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	config.LoadEnvFile()
	cfg := config.Load()
	if *dbPath != "" {
		cfg.DBDriver = storage.DriverSQLite
		cfg.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(log.Config{Level: cfg.LogLevel, Component: log.ComponentApp, Output: stderr})

	db, err := storage.Open(ctx, storage.OptionsFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sender, err := newSender(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure mail: %w", err)
	}

	authSvc := auth.NewService(db, sender, logger, auth.Options{
		AppName:     cfg.AppName,
		HashCost:    cfg.OTPHashCost,
		DBTimeout:   cfg.DBTimeout,
		MailTimeout: cfg.MailTimeout,
	})

	if err := authSvc.RequestChallenge(ctx, *email); err != nil {
		return fmt.Errorf("failed to send code: %w", err)
	}
	fmt.Fprintf(stdout, "A code was sent to %s. It expires in %d minutes.\n", strings.TrimSpace(*email), int(auth.ChallengeTTL.Minutes()))

	fmt.Fprint(stdout, "Code: ")
	code, err := readCode(stdin)
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}
	fmt.Fprintln(stdout) // Print newline after code input

	user, err := authSvc.VerifyChallenge(ctx, *email, code)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	total, err := ledger.NewService(db, logger, cfg.DBTimeout, nil).TotalSpend(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	fmt.Fprintf(stdout, "Logged in as %s (user id %d)\n", user.Email, user.ID)
	fmt.Fprintf(stdout, "Total spend: %s\n", total.StringFixed(2))
	return nil
}

func readCode(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no code entered")
}
