// Package ghl is the GoHighLevel integration: the OAuth authorization-code
// flow and the contacts export gated on a stored token.
package ghl

import (
	"time"

	"go.uber.org/zap"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthorizeURL string
	TokenURL     string
	ContactsURL  string
	APIVersion   string
	Scopes       []string
	// UserType is sent as user_type on the token exchange when set.
	UserType string
	Tags     []string
	Source   string
	Timeout  time.Duration
}

type Option func(*options)

type options struct {
	now func() time.Time
	log *zap.Logger
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zap.L()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// missing returns the config key of every empty value, in argument order.
func missing(pairs ...[2]string) error {
	var names []string
	for _, p := range pairs {
		if p[1] == "" {
			names = append(names, p[0])
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &ConfigurationError{Missing: names}
}
