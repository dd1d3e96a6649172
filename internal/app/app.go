// Package app builds the shared component graph from configuration for both
// the API server and the CLI.
package app

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/config"
	"github.com/yourorg/listing-sync/internal/enrich"
	"github.com/yourorg/listing-sync/internal/events"
	"github.com/yourorg/listing-sync/internal/finder"
	"github.com/yourorg/listing-sync/internal/ghl"
	"github.com/yourorg/listing-sync/internal/redisx"
	"github.com/yourorg/listing-sync/internal/store"
	"github.com/yourorg/listing-sync/internal/tokenstore"
	"github.com/yourorg/listing-sync/zillow"
)

type Env struct {
	Config  *config.Config
	Zillow  *zillow.Client
	Tokens  *tokenstore.Store
	Flow    *ghl.Flow
	Gateway *ghl.Gateway
	Hub     *events.Hub
	Finder  *finder.Finder

	ping    func(ctx context.Context) error
	closers []func()
}

func Init(ctx context.Context, cfg *config.Config) (*Env, error) {
	log := zap.L()
	e := &Env{Config: cfg}

	kv, err := e.tokenBackend(ctx, cfg)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Tokens = tokenstore.New(kv, tokenstore.WithPrefix(cfg.Tokens.KeyPrefix), tokenstore.WithLogger(log))

	e.Zillow = zillow.NewClient(zillow.Config{
		BaseURL:          cfg.Listings.BaseURL,
		Host:             cfg.Listings.Host,
		APIKey:           cfg.Listings.APIKey,
		Timeout:          cfg.Listings.Timeout,
		DetailRetries:    cfg.Listings.DetailRetries,
		PlaceholderImage: cfg.Listings.PlaceholderImage,
		Logger:           log,
	})

	gc := GHLConfig(cfg.GHL)
	e.Flow = ghl.NewFlow(gc, ghl.WithLogger(log))
	e.Gateway = ghl.NewGateway(gc, e.Tokens, ghl.WithLogger(log))

	e.Hub = events.NewHub()
	seq := enrich.New(e.Zillow, enrich.WithRate(cfg.Listings.DetailRPS), enrich.WithLogger(log))
	e.Finder = finder.New(e.Zillow, seq, e.Hub, log)
	e.closers = append(e.closers, e.Finder.Close)

	return e, nil
}

// tokenBackend selects the KV that persists the CRM token bundle.
func (e *Env) tokenBackend(ctx context.Context, cfg *config.Config) (tokenstore.KV, error) {
	switch cfg.Tokens.Backend {
	case "", "memory":
		return tokenstore.NewMemory(), nil
	case "redis":
		c := redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		e.closers = append(e.closers, func() { _ = c.Close() })
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Ping(pctx); err != nil {
			return nil, eris.Wrap(err, "app: redis ping")
		}
		e.ping = c.Ping
		return c, nil
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, eris.New("app: postgres.dsn is required for the postgres token backend")
		}
		st, pool, err := store.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, pool.Close)
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := st.Ping(pctx); err != nil {
			return nil, eris.Wrap(err, "app: postgres ping")
		}
		if err := st.Migrate(pctx); err != nil {
			return nil, err
		}
		e.ping = st.Ping
		return st, nil
	}
	return nil, eris.Errorf("app: unsupported token backend %q", cfg.Tokens.Backend)
}

// GHLConfig copies the CRM settings out of the loaded configuration.
func GHLConfig(c config.GHLConfig) ghl.Config {
	return ghl.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		AuthorizeURL: c.AuthorizeURL,
		TokenURL:     c.TokenURL,
		ContactsURL:  c.ContactsURL,
		APIVersion:   c.APIVersion,
		Scopes:       append([]string(nil), c.Scopes...),
		UserType:     c.UserType,
		Tags:         append([]string(nil), c.Tags...),
		Source:       c.Source,
		Timeout:      c.Timeout,
	}
}

// Ping checks the token backend; the memory backend is always healthy.
func (e *Env) Ping(ctx context.Context) error {
	if e.ping == nil {
		return nil
	}
	return e.ping(ctx)
}

func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
