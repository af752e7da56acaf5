package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/autoresponse"
	"github.com/nhle/mailtriage/internal/credential"
	"github.com/nhle/mailtriage/internal/logging"
	"github.com/nhle/mailtriage/internal/mailbox"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/responder"
	"github.com/nhle/mailtriage/internal/runner"
	"github.com/nhle/mailtriage/internal/store"
	"github.com/nhle/mailtriage/internal/triage"
)

// commonFlags are shared by every command that reads the config.
type commonFlags struct {
	config   string
	logLevel string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.config, "config", "c", model.DefaultConfigPath(), "path to configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "override log level (debug|info|warn|error)")
}

// load reads the config and builds the logger it describes.
func (c *commonFlags) load() (*model.AppConfig, *zap.Logger, error) {
	cfg, err := model.LoadConfig(c.config)
	if err != nil {
		return nil, nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// account holds the collaborators built for one configured mailbox.
type account struct {
	cfg     *model.AppConfig
	runner  *runner.Runner
	runs    *store.SQLiteStore
	session mailbox.Session
}

func (a *account) Close() {
	if a.session != nil {
		_ = a.session.EndSession()
	}
	if a.runs != nil {
		_ = a.runs.Close()
	}
}

type buildOptions struct {
	dryRun     bool
	maxResults int
	record     bool

	// verify logs in once before returning so bad credentials fail
	// at startup.
	verify bool
}

// buildAccount wires the mailbox, classifier, responder and history
// store for cfg.
func buildAccount(ctx context.Context, cfg *model.AppConfig, opts buildOptions, logger *zap.Logger) (*account, error) {
	name := cfg.Mailbox.Account
	logger = logger.With(zap.String("account", name))

	imapStore, err := openMailbox(cfg.Mailbox, logger)
	if err != nil {
		return nil, err
	}
	acct := &account{cfg: cfg, session: imapStore}
	if opts.verify {
		if err := imapStore.Ping(ctx); err != nil {
			acct.Close()
			return nil, fmt.Errorf("checking mailbox %s: %w", name, err)
		}
	}

	var mail mailbox.MailStore = imapStore
	if opts.dryRun {
		mail = mailbox.NewDryRun(mail, logger)
	}

	classifier, err := triage.NewClassifierFromConfig(cfg.Classifier)
	if err != nil {
		acct.Close()
		return nil, err
	}

	reply, err := newResponder(cfg.Responder, logger)
	if err != nil {
		acct.Close()
		return nil, err
	}

	var waiter autoresponse.Waiter = autoresponse.TimerWaiter{}
	if opts.dryRun {
		waiter = autoresponse.NoWait{}
	}

	var runs store.RunStore
	if opts.record && !opts.dryRun {
		acct.runs, err = store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			acct.Close()
			return nil, fmt.Errorf("opening run history: %w", err)
		}
		runs = acct.runs
	}

	maxResults := opts.maxResults
	if maxResults <= 0 {
		maxResults = cfg.Poll.MaxResults
	}

	autoCfg := cfg.AutoResponse
	acct.runner = runner.New(name,
		triage.NewSorter(mail, classifier, name, logger),
		autoresponse.NewOrchestrator(mail, reply, waiter, name, logger),
		runs, maxResults,
		func() model.AutoResponseConfig { return autoCfg },
		logger,
		runner.WithSession(imapStore),
	)
	return acct, nil
}

func openMailbox(cfg model.MailboxConfig, logger *zap.Logger) (*mailbox.IMAPStore, error) {
	if cfg.IMAPHost == "" {
		return nil, fmt.Errorf("mailbox.imap_host is not configured")
	}
	password, err := credential.Resolve(cfg.Password, credential.IMAPPasswordKey(cfg.Account))
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("no password for account %q: run mailtriage set-secret imap %s", cfg.Account, cfg.Account)
	}

	return mailbox.NewIMAPStore(
		mailbox.IMAPConfig{
			Host:         cfg.IMAPHost,
			Port:         cfg.IMAPPort,
			Username:     cfg.Username,
			Password:     password,
			TLS:          cfg.TLS,
			Folder:       cfg.Folder,
			DraftsFolder: cfg.DraftsFolder,
		},
		mailbox.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: password,
			TLS:      cfg.TLS,
		},
		logger,
	), nil
}

func newResponder(cfg model.ResponderConfig, logger *zap.Logger) (responder.Responder, error) {
	if cfg.Provider == "" || cfg.Provider == responder.ProviderTemplate {
		return responder.New(cfg, "", logger)
	}
	apiKey, err := credential.Resolve(cfg.APIKey, credential.APIKeyKey(cfg.Provider))
	if err != nil {
		return nil, err
	}
	return responder.New(cfg, apiKey, logger)
}
