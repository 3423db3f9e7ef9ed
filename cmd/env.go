package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/jobs"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/providerstate"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scrape"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/dataforseo"
	"github.com/sells-group/outreach-cli/pkg/gemini"
	"github.com/sells-group/outreach-cli/pkg/gmail"
	"github.com/sells-group/outreach-cli/pkg/google"
	"github.com/sells-group/outreach-cli/pkg/hunter"
)

// initStore opens the configured database and applies migrations.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate("store"); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initProviderState returns the restriction store. An unreachable Redis
// falls back to process memory.
func initProviderState(ctx context.Context, c *config.Config) (providerstate.Store, func(), error) {
	if err := c.Validate("provider_state"); err != nil {
		return nil, nil, err
	}
	opts := []providerstate.Option{
		providerstate.WithDefaultRestriction(time.Duration(c.ProviderState.DefaultRestrictionSecs) * time.Second),
		providerstate.WithKeyPrefix(c.ProviderState.KeyPrefix),
	}

	if c.ProviderState.Backend == "redis" {
		rs, err := providerstate.NewRedisStore(ctx, c.ProviderState.RedisURL, opts...)
		if err == nil {
			return rs, func() { rs.Close() }, nil //nolint:errcheck
		}
		zap.L().Warn("provider state: redis unavailable, using in-memory store; restrictions are not shared between processes",
			zap.Error(err))
	} else {
		zap.L().Warn("provider state: in-memory store; restrictions are not shared between processes")
	}
	return providerstate.NewMemoryStore(opts...), func() {}, nil
}

func retryConfig(c config.RetryConfig) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		rc.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		rc.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		rc.Multiplier = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		rc.JitterFraction = c.JitterFraction
	}
	return rc
}

// buildRegistry registers every provider whose credentials are configured.
// Missing providers surface as "provider not configured" when a job needs
// them. The returned func releases client resources.
func buildRegistry(ctx context.Context, c *config.Config) (*provider.Registry, func(), error) {
	reg := provider.NewRegistry()
	var closers []func()
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}
	rc := retryConfig(c.Retry)

	if c.DataForSEO.Login != "" && c.DataForSEO.Password != "" {
		client := dataforseo.NewClient(c.DataForSEO.Login, c.DataForSEO.Password,
			dataforseo.WithBaseURL(c.DataForSEO.BaseURL),
			dataforseo.WithRetry(rc),
		)
		reg.Register(provider.NewDataForSEODiscoverer(client, c.DataForSEO.LanguageCode, c.DataForSEO.LocationCode, c.DataForSEO.Depth))
	}

	if c.GoogleSearch.Key != "" && c.GoogleSearch.EngineID != "" {
		client, err := google.NewClient(ctx, c.GoogleSearch.Key, c.GoogleSearch.EngineID, google.WithRetry(rc))
		if err != nil {
			return nil, closeAll, eris.Wrap(err, "init google search")
		}
		reg.Register(provider.NewGoogleDiscoverer(client))
	}

	fetcher := scrape.NewFetcher(scrape.Options{
		Timeout:   time.Duration(c.Scrape.TimeoutSecs) * time.Second,
		MaxBodyKB: c.Scrape.MaxBodyKB,
		UserAgent: c.Scrape.UserAgent,
	})
	reg.Register(scrape.NewEmailFinder(fetcher, c.Scrape.ContactPaths))

	if c.Hunter.Key != "" {
		opts := []hunter.Option{hunter.WithRetry(rc)}
		if c.Hunter.BaseURL != "" {
			opts = append(opts, hunter.WithBaseURL(c.Hunter.BaseURL))
		}
		reg.Register(provider.NewHunterProvider(hunter.NewClient(c.Hunter.Key, opts...), c.Jobs.AcceptRiskyEmails))
	}

	settings := provider.ComposeSettings{
		SenderName:    c.Drafting.SenderName,
		SenderCompany: c.Drafting.SenderCompany,
		Offer:         c.Drafting.Offer,
		MaxTokens:     c.Drafting.MaxTokens,
	}
	if c.Anthropic.Key != "" {
		reg.Register(provider.NewAnthropicComposer(anthropic.NewClient(c.Anthropic.Key, anthropic.WithRetry(rc)), c.Anthropic.Model, settings))
	}
	if c.Gemini.Key != "" {
		client, err := gemini.NewClient(ctx, c.Gemini.Key)
		if err != nil {
			return nil, closeAll, eris.Wrap(err, "init gemini")
		}
		closers = append(closers, func() { client.Close() }) //nolint:errcheck
		reg.Register(provider.NewGeminiComposer(client, c.Gemini.Model, settings))
	}

	creds := gmail.Credentials{
		ClientID:     c.Gmail.ClientID,
		ClientSecret: c.Gmail.ClientSecret,
		RefreshToken: c.Gmail.RefreshToken,
	}
	if creds.Configured() {
		client, err := gmail.NewClient(ctx, creds)
		if err != nil {
			return nil, closeAll, eris.Wrap(err, "init gmail")
		}
		reg.Register(provider.NewGmailSender(client, c.Gmail.From))
	}

	zap.L().Debug("providers configured", zap.Strings("providers", reg.List()))
	return reg, closeAll, nil
}

func runnerOptions(c *config.Config) jobs.Options {
	return jobs.Options{
		ItemDelay:    c.Jobs.ItemDelay(),
		DefaultLimit: c.Jobs.DefaultLimit,
		Draft:        model.DraftPolicy{AllowUnverified: c.Jobs.AllowUnverifiedDrafts},
		FollowUp:     model.FollowUpPolicy{Max: c.Jobs.MaxFollowups, After: c.Jobs.FollowupAfter()},
		Composer:     c.Drafting.Provider,
		LocationCode: c.DataForSEO.LocationCode,
	}
}

// env bundles the dependencies of job commands.
type env struct {
	st      store.Store
	state   providerstate.Store
	runner  *jobs.Runner
	cleanup []func()
}

func (e *env) Close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// initEnv wires the store, provider state and providers for job execution.
func initEnv(ctx context.Context, c *config.Config) (*env, error) {
	if err := c.Validate("jobs"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	e := &env{st: st, cleanup: []func(){func() { st.Close() }}} //nolint:errcheck

	state, closeState, err := initProviderState(ctx, c)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.state = state
	e.cleanup = append(e.cleanup, closeState)

	reg, closeProviders, err := buildRegistry(ctx, c)
	if err != nil {
		closeProviders()
		e.Close()
		return nil, err
	}
	e.cleanup = append(e.cleanup, closeProviders)
	e.runner = jobs.NewRunner(st, state, reg, runnerOptions(c))
	return e, nil
}
