// Package tokenstore persists the CRM OAuth bundle as three key-value
// entries and answers whether it is still usable.
package tokenstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Bundle is the credential set returned by a successful code exchange.
type Bundle struct {
	AccessToken string
	LocationID  string
	ExpiresAt   time.Time
}

func (b Bundle) complete() bool {
	return b.AccessToken != "" && b.LocationID != "" && !b.ExpiresAt.IsZero()
}

// KV is the persistence backend. Write and Delete must apply all keys as a
// single operation so readers never observe a partial bundle.
type KV interface {
	Read(ctx context.Context, keys []string) (map[string]string, error)
	Write(ctx context.Context, kv map[string]string) error
	Delete(ctx context.Context, keys []string) error
}

var ErrIncompleteBundle = eris.New("tokenstore: bundle requires access token, location id and expiry")

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithPrefix sets the key prefix, "ghl_" by default.
func WithPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

type Store struct {
	kv     KV
	prefix string
	now    func() time.Time
	log    *zap.Logger
}

func New(kv KV, opts ...Option) *Store {
	s := &Store{kv: kv, prefix: "ghl_", now: time.Now, log: zap.L()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) keyToken() string    { return s.prefix + "access_token" }
func (s *Store) keyLocation() string { return s.prefix + "location_id" }
func (s *Store) keyExpiry() string   { return s.prefix + "token_expiry" }

func (s *Store) keys() []string {
	return []string{s.keyToken(), s.keyLocation(), s.keyExpiry()}
}

// Get returns the stored bundle, or ok=false when any of the three fields is
// missing or the expiry is unreadable.
func (s *Store) Get(ctx context.Context) (Bundle, bool, error) {
	vals, err := s.kv.Read(ctx, s.keys())
	if err != nil {
		return Bundle{}, false, eris.Wrap(err, "tokenstore: read")
	}
	tok := strings.TrimSpace(vals[s.keyToken()])
	loc := strings.TrimSpace(vals[s.keyLocation()])
	exp := strings.TrimSpace(vals[s.keyExpiry()])
	if tok == "" || loc == "" || exp == "" {
		return Bundle{}, false, nil
	}
	ms, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		s.log.Warn("tokenstore: unreadable expiry", zap.String("value", exp))
		return Bundle{}, false, nil
	}
	return Bundle{AccessToken: tok, LocationID: loc, ExpiresAt: time.UnixMilli(ms)}, true, nil
}

// Valid reports whether b can be used at instant now. The expiry instant
// itself counts as expired.
func Valid(b Bundle, now time.Time) bool {
	return b.complete() && now.Before(b.ExpiresAt)
}

// IsValid re-reads the store. Read failures count as invalid.
func (s *Store) IsValid(ctx context.Context) bool {
	b, ok, err := s.Get(ctx)
	if err != nil {
		s.log.Warn("tokenstore: validity check failed", zap.Error(err))
		return false
	}
	return ok && Valid(b, s.now())
}

// Current returns the bundle only when it is valid right now.
func (s *Store) Current(ctx context.Context) (Bundle, bool) {
	b, ok, err := s.Get(ctx)
	if err != nil {
		s.log.Warn("tokenstore: read failed", zap.Error(err))
		return Bundle{}, false
	}
	if !ok || !Valid(b, s.now()) {
		return Bundle{}, false
	}
	return b, true
}

func (s *Store) Set(ctx context.Context, b Bundle) error {
	if !b.complete() {
		return ErrIncompleteBundle
	}
	err := s.kv.Write(ctx, map[string]string{
		s.keyToken():    b.AccessToken,
		s.keyLocation(): b.LocationID,
		s.keyExpiry():   strconv.FormatInt(b.ExpiresAt.UnixMilli(), 10),
	})
	if err != nil {
		return eris.Wrap(err, "tokenstore: write")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.keys()); err != nil {
		return eris.Wrap(err, "tokenstore: clear")
	}
	return nil
}
