package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nhle/mailtriage/internal/credential"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/report"
	"github.com/nhle/mailtriage/internal/store"
	"github.com/nhle/mailtriage/internal/sync"
	"github.com/nhle/mailtriage/internal/ui/configform"
)

func runSort(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("sort", pflag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	limit := fs.IntP("limit", "n", 0, "maximum unread messages to fetch (default poll.max_results)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	acct, err := buildAccount(ctx, cfg, buildOptions{maxResults: *limit}, logger)
	if err != nil {
		return err
	}
	defer acct.Close()

	categorized, err := acct.runner.Sort(ctx)
	if err != nil {
		return err
	}
	return report.Inbox(os.Stdout, cfg.Mailbox.Account, categorized)
}

func runRespond(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("respond", pflag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	limit := fs.IntP("limit", "n", 0, "maximum unread messages to fetch (default poll.max_results)")
	dryRun := fs.Bool("dry-run", false, "log replies instead of sending, skip waits and history")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	acct, err := buildAccount(ctx, cfg, buildOptions{maxResults: *limit, dryRun: *dryRun, record: true}, logger)
	if err != nil {
		return err
	}
	defer acct.Close()

	summary, err := acct.runner.Run(ctx)
	if err != nil {
		return err
	}
	return report.Summary(os.Stdout, summary)
}

func runWatch(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	configs := fs.StringSliceP("config", "c", []string{model.DefaultConfigPath()}, "configuration file per account (repeatable)")
	logLevel := fs.String("log-level", "", "override log level (debug|info|warn|error)")
	dryRun := fs.Bool("dry-run", false, "log replies instead of sending")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		accounts []*account
		logger   *zap.Logger
	)
	defer func() {
		for _, a := range accounts {
			a.Close()
		}
	}()

	for i, path := range *configs {
		common := commonFlags{config: path, logLevel: *logLevel}
		cfg, l, err := common.load()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		// The first config decides logging and the metrics listener.
		if i == 0 {
			logger = l
		}
		acct, err := buildAccount(ctx, cfg, buildOptions{dryRun: *dryRun, record: true, verify: true}, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		accounts = append(accounts, acct)
	}
	if len(accounts) == 0 {
		return errors.New("no accounts configured")
	}
	defer logger.Sync()

	poller := sync.New(logger)
	for _, a := range accounts {
		poller.Register(a.runner, time.Duration(a.cfg.Poll.IntervalSec)*time.Second)
	}

	srv := &http.Server{
		Addr:              accounts[0].cfg.Metrics.Listen,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	poller.Start(ctx)
	logger.Info("watching accounts", zap.Int("accounts", len(accounts)))

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down, waiting for passes to finish...")
			poller.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return nil
		case res := <-poller.Results():
			if res.Error != nil {
				continue
			}
			logger.Info("pass complete",
				zap.String("account", res.Account),
				zap.String("run_id", res.Summary.RunID),
				zap.Int("messages_seen", res.Summary.MessagesSeen),
				zap.Int("auto_responded", res.Summary.AutoResponded),
				zap.Int("failed", res.Summary.Failed),
			)
		}
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func runConfigure(_ context.Context, args []string) error {
	fs := pflag.NewFlagSet("configure", pflag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(common.config)
	if err != nil {
		return err
	}
	if err := configform.Run(common.config, cfg); err != nil {
		return err
	}
	fmt.Printf("Saved auto-response settings to %s\n", common.config)
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	limit := fs.IntP("limit", "n", 20, "number of runs to show")
	runID := fs.String("run", "", "show the outcomes of one run")
	allAccounts := fs.Bool("all", false, "include runs of every account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(common.config)
	if err != nil {
		return err
	}

	runs, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer runs.Close()

	if *runID != "" {
		run, err := runs.GetRun(ctx, *runID)
		if err != nil {
			return err
		}
		return report.Summary(os.Stdout, *run)
	}

	filter := store.RunFilter{Limit: *limit}
	if !*allAccounts {
		filter.Account = &cfg.Mailbox.Account
	}
	list, err := runs.ListRuns(ctx, filter)
	if err != nil {
		return err
	}
	return report.History(os.Stdout, list)
}

func runSetSecret(_ context.Context, args []string) error {
	fs := pflag.NewFlagSet("set-secret", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: mailtriage set-secret imap <account> | api-key <provider>")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("expected a secret kind and a name")
	}

	var key string
	switch kind, name := fs.Arg(0), fs.Arg(1); kind {
	case "imap":
		key = credential.IMAPPasswordKey(name)
	case "api-key":
		key = credential.APIKeyKey(name)
	default:
		return fmt.Errorf("unknown secret kind %q", kind)
	}

	fmt.Fprintf(os.Stderr, "Enter value for %s: ", key)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading secret: %w", err)
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return errors.New("secret must not be empty")
	}

	if err := credential.Set(key, value); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Stored %s in the system keyring.\n", key)
	return nil
}
