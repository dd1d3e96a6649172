// Package zillow talks to the RapidAPI-hosted Zillow listing provider: the
// bulk /search endpoint and the per-listing /propertyV2 endpoint.
package zillow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/httpx"
	"github.com/yourorg/listing-sync/internal/listing"
)

const (
	defaultPriceMax = 10000000
	defaultSqftMax  = 10000000
)

// typeFlags maps each recognized property type to its provider query flag.
var typeFlags = map[listing.PropertyType]string{
	listing.Houses:       "isSingleFamily",
	listing.Apartments:   "isApartment",
	listing.Condos:       "isCondo",
	listing.Townhomes:    "isTownhouse",
	listing.Manufactured: "isManufactured",
	listing.LotsLand:     "isLotLand",
	listing.MultiFamily:  "isMultiFamily",
}

type Config struct {
	BaseURL          string
	Host             string
	APIKey           string
	Timeout          time.Duration
	DetailRetries    int
	PlaceholderImage string
	Logger           *zap.Logger
}

type Client struct {
	key         string
	host        string
	baseURL     string
	placeholder string
	// search never retries; detail may retry transient 429/5xx.
	search *retryablehttp.Client
	detail *retryablehttp.Client
	log    *zap.Logger
}

func NewClient(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" && cfg.Host != "" {
		base = "https://" + cfg.Host
	}
	placeholder := cfg.PlaceholderImage
	if placeholder == "" {
		placeholder = defaultPlaceholder
	}
	return &Client{
		key:         cfg.APIKey,
		host:        cfg.Host,
		baseURL:     base,
		placeholder: placeholder,
		search:      httpx.New(httpx.Options{RetryMax: 0, Timeout: cfg.Timeout, Logger: log}),
		detail:      httpx.New(httpx.Options{RetryMax: cfg.DetailRetries, Timeout: cfg.Timeout, Logger: log}),
		log:         log.Named("zillow"),
	}
}

// SearchParams converts a query into provider parameters. Every type flag is
// set true when the filter names no recognized type, so an empty filter means
// "show everything" rather than "match nothing".
func SearchParams(q listing.Query) url.Values {
	p := url.Values{}
	p.Set("location", fmt.Sprintf("%s, %s", q.Location, q.State))
	p.Set("status", "forSale")
	page := q.Page
	if page <= 0 {
		page = 1
	}
	p.Set("page", strconv.Itoa(page))
	p.Set("price_min", strconv.Itoa(q.MinPrice))
	p.Set("price_max", strconv.Itoa(orDefault(q.MaxPrice, defaultPriceMax)))
	p.Set("beds_min", strconv.Itoa(q.Beds))
	p.Set("baths_min", strconv.Itoa(q.Baths))
	p.Set("sqft_min", strconv.Itoa(q.MinSqft))
	p.Set("sqft_max", strconv.Itoa(orDefault(q.MaxSqft, defaultSqftMax)))
	if q.Sort != "" {
		p.Set("sort", q.Sort)
	}

	selected := make(map[string]bool, len(typeFlags))
	for _, t := range q.HomeTypes {
		if flag, ok := typeFlags[t]; ok {
			selected[flag] = true
		}
	}
	all := len(selected) == 0
	for _, flag := range typeFlags {
		p.Set(flag, strconv.FormatBool(all || selected[flag]))
	}
	return p
}

// Search issues one /search call. It does not retry.
func (c *Client) Search(ctx context.Context, q listing.Query) (listing.Page, error) {
	raw, err := c.get(ctx, c.search, "/search", SearchParams(q))
	if err != nil {
		return listing.Page{}, err
	}
	page, err := MapSearchPayload(raw, c.placeholder)
	if err != nil {
		return listing.Page{}, &SearchError{Err: eris.Wrap(err, "zillow: decode search"), Body: string(raw)}
	}
	c.log.Debug("search complete",
		zap.String("location", q.Location),
		zap.String("state", q.State),
		zap.Int("results", len(page.Listings)),
		zap.Int("total", page.Total))
	return page, nil
}

// AgentDetail fetches listing-agent attribution for one listing.
func (c *Client) AgentDetail(ctx context.Context, id string) (listing.AgentDetail, error) {
	raw, err := c.propertyV2(ctx, id)
	if err != nil {
		return listing.AgentDetail{}, err
	}
	d, err := MapAgentPayload(raw)
	if err != nil {
		return listing.AgentDetail{}, eris.Wrapf(err, "zillow: decode agent detail %s", id)
	}
	return d, nil
}

// PropertyDetails fetches the full record for one listing, agent included.
func (c *Client) PropertyDetails(ctx context.Context, id string) (listing.Listing, error) {
	raw, err := c.propertyV2(ctx, id)
	if err != nil {
		return listing.Listing{}, err
	}
	l, err := MapPropertyPayload(id, raw, c.placeholder)
	if err != nil {
		return listing.Listing{}, eris.Wrapf(err, "zillow: decode property %s", id)
	}
	return l, nil
}

func (c *Client) propertyV2(ctx context.Context, id string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, eris.New("zillow: empty listing id")
	}
	q := url.Values{}
	q.Set("zpid", id)
	return c.get(ctx, c.detail, "/propertyV2", q)
}

func (c *Client) get(ctx context.Context, hc *retryablehttp.Client, path string, q url.Values) ([]byte, error) {
	if c.baseURL == "" {
		return nil, &SearchError{Err: eris.New("zillow: listings base url or host not configured")}
	}
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, q.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &SearchError{Err: eris.Wrap(err, "zillow: build request")}
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.key)
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &SearchError{Err: eris.Wrapf(err, "zillow: GET %s", path)}
	}
	defer resp.Body.Close()

	body, err := httpx.ReadAllLimit(resp.Body, httpx.MaxBody)
	if err != nil {
		return nil, &SearchError{Status: resp.StatusCode, Err: eris.Wrapf(err, "zillow: GET %s", path)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SearchError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
