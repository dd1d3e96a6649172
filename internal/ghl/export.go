package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/listing-sync/internal/canon"
	"github.com/yourorg/listing-sync/internal/httpx"
	"github.com/yourorg/listing-sync/internal/listing"
	"github.com/yourorg/listing-sync/internal/tokenstore"
)

// Contact is the contacts API request body.
type Contact struct {
	LocationID   string        `json:"locationId"`
	Name         string        `json:"name,omitempty"`
	FirstName    string        `json:"firstName,omitempty"`
	LastName     string        `json:"lastName,omitempty"`
	Email        string        `json:"email,omitempty"`
	Phone        *string       `json:"phone"`
	Address1     string        `json:"address1,omitempty"`
	City         string        `json:"city,omitempty"`
	State        string        `json:"state,omitempty"`
	PostalCode   string        `json:"postalCode,omitempty"`
	CompanyName  string        `json:"companyName,omitempty"`
	Source       string        `json:"source,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

type CustomField struct {
	Key   string `json:"key"`
	Value any    `json:"field_value"`
}

// BuildContact maps a listing and its agent onto a contact. Sentinel agent
// fields are left out; an unknown phone is sent as null.
func BuildContact(l listing.Listing, locationID string, tags []string, source string) Contact {
	c := Contact{
		LocationID: locationID,
		Address1:   canon.Street(l.Address),
		City:       strings.TrimSpace(l.City),
		State:      canon.State(l.State),
		PostalCode: canon.Zip(l.Zip),
		Source:     source,
		Tags:       append([]string(nil), tags...),
	}
	a := l.Agent
	if listing.Known(a.Name) {
		c.Name = strings.Join(strings.Fields(a.Name), " ")
		c.FirstName, c.LastName = splitName(c.Name)
	}
	if listing.Known(a.Email) {
		c.Email = strings.TrimSpace(a.Email)
	}
	if p, ok := NormalizePhone(a.Phone); ok {
		c.Phone = &p
	}
	if listing.Known(a.BrokerName) {
		c.CompanyName = strings.TrimSpace(a.BrokerName)
	}

	add := func(key string, v any) {
		switch x := v.(type) {
		case string:
			if !listing.Known(x) {
				return
			}
		case int:
			if x == 0 {
				return
			}
		case float64:
			if x == 0 {
				return
			}
		}
		c.CustomFields = append(c.CustomFields, CustomField{Key: key, Value: v})
	}
	add("zpid", l.ID)
	add("property_price", l.Price)
	add("beds", l.Beds)
	add("baths", l.Baths)
	add("sqft", l.Sqft)
	add("property_type", l.PropertyType)
	add("year_built", l.YearBuilt)
	add("property_image_url", l.ImageURL)
	add("property_detail_url", l.DetailURL)
	add("listing_agent_name", a.Name)
	add("listing_agent_phone", a.Phone)
	add("listing_agent_email", a.Email)
	add("listing_broker_name", a.BrokerName)
	return c
}

func splitName(name string) (first, last string) {
	first, last, _ = strings.Cut(name, " ")
	return first, last
}

type ExportResult struct {
	ListingID string `json:"listingId"`
	ContactID string `json:"contactId,omitempty"`
	Status    int    `json:"status"`
}

// Outcome is one listing's result within a batch.
type Outcome struct {
	ListingID string       `json:"listingId"`
	OK        bool         `json:"ok"`
	Result    ExportResult `json:"result"`
	Err       error        `json:"-"`
}

type BatchResult struct {
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

// Gateway exports listings as contacts. Every call re-reads the token store.
type Gateway struct {
	cfg    Config
	tokens *tokenstore.Store
	hc     *retryablehttp.Client
	log    *zap.Logger
}

func NewGateway(cfg Config, tokens *tokenstore.Store, opts ...Option) *Gateway {
	o := buildOptions(opts)
	return &Gateway{
		cfg:    cfg,
		tokens: tokens,
		hc:     httpx.New(httpx.Options{RetryMax: 0, Timeout: cfg.Timeout, Logger: o.log}),
		log:    o.log.Named("ghl.export"),
	}
}

// ExportOne posts one listing. Without a valid token it returns
// ErrAuthorizationRequired and makes no request.
func (g *Gateway) ExportOne(ctx context.Context, l listing.Listing) (ExportResult, error) {
	res := ExportResult{ListingID: l.ID}
	b, ok := g.tokens.Current(ctx)
	if !ok {
		return res, ErrAuthorizationRequired
	}
	if err := missing(
		[2]string{"ghl.contacts_url", g.cfg.ContactsURL},
		[2]string{"ghl.api_version", g.cfg.APIVersion},
	); err != nil {
		return res, err
	}

	payload, err := json.Marshal(BuildContact(l, b.LocationID, g.cfg.Tags, g.cfg.Source))
	if err != nil {
		return res, &ExportError{ListingID: l.ID, Err: eris.Wrap(err, "encode contact")}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.cfg.ContactsURL, bytes.NewReader(payload))
	if err != nil {
		return res, &ExportError{ListingID: l.ID, Err: eris.Wrap(err, "build contact request")}
	}
	req.Header.Set("Authorization", "Bearer "+b.AccessToken)
	req.Header.Set("Version", g.cfg.APIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return res, &ExportError{ListingID: l.ID, Err: eris.Wrap(err, "contact request")}
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	body, err := httpx.ReadAllLimit(resp.Body, httpx.MaxBody)
	if err != nil {
		return res, &ExportError{ListingID: l.ID, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.log.Warn("contact export rejected", zap.String("listing_id", l.ID), zap.Int("status", resp.StatusCode))
		return res, &ExportError{ListingID: l.ID, Status: resp.StatusCode, Body: string(body)}
	}

	var created struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if json.Unmarshal(body, &created) == nil {
		res.ContactID = created.Contact.ID
	}
	g.log.Info("listing exported", zap.String("listing_id", l.ID), zap.String("contact_id", res.ContactID))
	return res, nil
}

// ExportMany exports every listing concurrently and waits for all of them.
// It returns an error only when every listing failed: ErrAuthorizationRequired
// if all failures were authorization failures, the *ConfigurationError if all
// were configuration failures, ErrAllExportsFailed otherwise.
func (g *Gateway) ExportMany(ctx context.Context, ls []listing.Listing) (BatchResult, error) {
	out := BatchResult{Outcomes: make([]Outcome, len(ls))}

	var eg errgroup.Group
	for i, l := range ls {
		eg.Go(func() error {
			res, err := g.ExportOne(ctx, l)
			out.Outcomes[i] = Outcome{ListingID: l.ID, OK: err == nil, Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	authFailures, configFailures := 0, 0
	var cfgErr *ConfigurationError
	for _, o := range out.Outcomes {
		if o.OK {
			out.Succeeded++
			continue
		}
		out.Failed++
		var ce *ConfigurationError
		switch {
		case errors.Is(o.Err, ErrAuthorizationRequired):
			authFailures++
		case errors.As(o.Err, &ce):
			configFailures++
			cfgErr = ce
		}
	}
	if len(ls) == 0 || out.Succeeded > 0 {
		return out, nil
	}
	switch out.Failed {
	case authFailures:
		return out, ErrAuthorizationRequired
	case configFailures:
		return out, cfgErr
	}
	return out, ErrAllExportsFailed
}
