package ghl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/httpx"
	"github.com/yourorg/listing-sync/internal/tokenstore"
)

// Flow runs the authorization-code grant. The exchange sends the client
// credentials as form-encoded body parameters and never an Authorization
// header.
type Flow struct {
	cfg Config
	hc  *retryablehttp.Client
	now func() time.Time
	log *zap.Logger
}

func NewFlow(cfg Config, opts ...Option) *Flow {
	o := buildOptions(opts)
	return &Flow{
		cfg: cfg,
		hc:  httpx.New(httpx.Options{RetryMax: 0, Timeout: cfg.Timeout, Logger: o.log}),
		now: o.now,
		log: o.log.Named("ghl.oauth"),
	}
}

// AuthorizationURL is the consent page the user is redirected to. It carries
// the public client id only.
func (f *Flow) AuthorizationURL() (string, error) {
	if err := missing(
		[2]string{"ghl.client_id", f.cfg.ClientID},
		[2]string{"ghl.redirect_uri", f.cfg.RedirectURI},
		[2]string{"ghl.authorize_url", f.cfg.AuthorizeURL},
	); err != nil {
		return "", err
	}
	u, err := url.Parse(f.cfg.AuthorizeURL)
	if err != nil {
		return "", eris.Wrap(err, "ghl: parse authorize url")
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", f.cfg.RedirectURI)
	q.Set("scope", strings.Join(f.cfg.Scopes, " "))
	// Scope is space separated; keep it as %20 rather than '+'.
	u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	return u.String(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	LocationID  string `json:"locationId"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	UserType    string `json:"userType"`
}

// Exchange trades an authorization code for a token bundle in one request.
// Missing client configuration is reported before any network I/O.
func (f *Flow) Exchange(ctx context.Context, code string) (tokenstore.Bundle, error) {
	if err := missing(
		[2]string{"ghl.client_id", f.cfg.ClientID},
		[2]string{"ghl.client_secret", f.cfg.ClientSecret},
		[2]string{"ghl.redirect_uri", f.cfg.RedirectURI},
		[2]string{"ghl.token_url", f.cfg.TokenURL},
	); err != nil {
		return tokenstore.Bundle{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return tokenstore.Bundle{}, &ExchangeError{Body: "missing authorization code"}
	}

	form := url.Values{}
	form.Set("client_id", f.cfg.ClientID)
	form.Set("client_secret", f.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", f.cfg.RedirectURI)
	if f.cfg.UserType != "" {
		form.Set("user_type", f.cfg.UserType)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenstore.Bundle{}, &ExchangeError{Err: eris.Wrap(err, "build token request")}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.hc.Do(req)
	if err != nil {
		return tokenstore.Bundle{}, &ExchangeError{Err: eris.Wrap(err, "token request")}
	}
	defer resp.Body.Close()

	body, err := httpx.ReadAllLimit(resp.Body, httpx.MaxBody)
	if err != nil {
		return tokenstore.Bundle{}, &ExchangeError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.log.Warn("token exchange rejected", zap.Int("status", resp.StatusCode))
		return tokenstore.Bundle{}, &ExchangeError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokenstore.Bundle{}, &ExchangeError{Status: resp.StatusCode, Body: string(body), Err: eris.Wrap(err, "decode token response")}
	}
	if tr.AccessToken == "" || tr.LocationID == "" || tr.ExpiresIn <= 0 {
		return tokenstore.Bundle{}, &ExchangeError{
			Status: resp.StatusCode,
			Body:   string(body),
			Err:    eris.New("token response lacks access_token, locationId or expires_in"),
		}
	}

	b := tokenstore.Bundle{
		AccessToken: tr.AccessToken,
		LocationID:  tr.LocationID,
		ExpiresAt:   f.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	f.log.Info("token exchange complete", zap.String("location_id", b.LocationID), zap.Time("expires_at", b.ExpiresAt))
	return b, nil
}
