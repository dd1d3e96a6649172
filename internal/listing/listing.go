package listing

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/yourorg/listing-sync/internal/canon"
)

const (
	// NotAvailable marks an agent field the provider did not supply.
	NotAvailable = "N/A"
	// LoadingText stands in for agent fields until enrichment resolves.
	LoadingText = "Loading..."
)

type AgentState string

const (
	AgentLoading     AgentState = "loading"
	AgentResolved    AgentState = "resolved"
	AgentUnavailable AgentState = "unavailable"
)

type AgentDetail struct {
	Name       string     `json:"name"`
	BrokerName string     `json:"brokerName"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	State      AgentState `json:"state"`
	// YearBuilt is an authoritative correction from the detail endpoint, 0 when absent.
	YearBuilt int `json:"yearBuilt,omitempty"`
}

func LoadingAgent() AgentDetail {
	return AgentDetail{
		Name:       LoadingText,
		BrokerName: LoadingText,
		Phone:      LoadingText,
		Email:      LoadingText,
		State:      AgentLoading,
	}
}

func UnavailableAgent() AgentDetail {
	return AgentDetail{
		Name:       NotAvailable,
		BrokerName: NotAvailable,
		Phone:      NotAvailable,
		Email:      NotAvailable,
		State:      AgentUnavailable,
	}
}

// Known reports whether v carries real data rather than a sentinel.
func Known(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != NotAvailable && v != LoadingText
}

type Listing struct {
	ID           string      `json:"id"`
	Address      string      `json:"address"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	Zip          string      `json:"zipCode"`
	Price        int         `json:"price"`
	Beds         int         `json:"beds"`
	Baths        float64     `json:"baths"`
	Sqft         int         `json:"sqft"`
	YearBuilt    int         `json:"yearBuilt,omitempty"`
	ImageURL     string      `json:"imageUrl"`
	PropertyType string      `json:"propertyType,omitempty"`
	Zestimate    int         `json:"zestimate,omitempty"`
	TaxValue     int         `json:"taxValue,omitempty"`
	LotSize      float64     `json:"lotSize,omitempty"`
	Description  string      `json:"description,omitempty"`
	DetailURL    string      `json:"detailUrl,omitempty"`
	Agent        AgentDetail `json:"listingAgent"`
}

// OneLine renders the address the way the CRM and logs show it.
func (l Listing) OneLine() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Address, l.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	tail := strings.TrimSpace(strings.TrimSpace(l.State) + " " + strings.TrimSpace(l.Zip))
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

type PropertyType string

const (
	Houses       PropertyType = "Houses"
	Apartments   PropertyType = "Apartments"
	Condos       PropertyType = "Condos"
	Townhomes    PropertyType = "Townhomes"
	Manufactured PropertyType = "Manufactured"
	LotsLand     PropertyType = "Lots/Land"
	MultiFamily  PropertyType = "Multi-family"
)

// PropertyTypes lists every recognized type in display order.
var PropertyTypes = []PropertyType{Houses, Apartments, Condos, Townhomes, Manufactured, LotsLand, MultiFamily}

func (t PropertyType) Recognized() bool {
	for _, k := range PropertyTypes {
		if k == t {
			return true
		}
	}
	return false
}

type Query struct {
	Location  string         `json:"location"`
	State     string         `json:"state"`
	HomeTypes []PropertyType `json:"homeType,omitempty"`
	MinPrice  int            `json:"minPrice,omitempty"`
	MaxPrice  int            `json:"maxPrice,omitempty"`
	Beds      int            `json:"beds,omitempty"`
	Baths     int            `json:"baths,omitempty"`
	MinSqft   int            `json:"minSqft,omitempty"`
	MaxSqft   int            `json:"maxSqft,omitempty"`
	Sort      string         `json:"sort,omitempty"`
	Page      int            `json:"page,omitempty"`
}

var ErrInvalidQuery = eris.New("invalid search query")

// Normalize trims the location and canonicalizes the state to its two-letter code.
func (q Query) Normalize() Query {
	q.Location = strings.Join(strings.Fields(q.Location), " ")
	q.State = canon.State(q.State)
	if q.Page <= 0 {
		q.Page = 1
	}
	return q
}

func (q Query) Validate() error {
	if strings.TrimSpace(q.Location) == "" || strings.TrimSpace(q.State) == "" {
		return eris.Wrap(ErrInvalidQuery, "location and state are required")
	}
	if q.MinPrice < 0 || q.MaxPrice < 0 || q.Beds < 0 || q.Baths < 0 || q.MinSqft < 0 || q.MaxSqft < 0 {
		return eris.Wrap(ErrInvalidQuery, "ranges must not be negative")
	}
	if q.MaxPrice > 0 && q.MinPrice > q.MaxPrice {
		return eris.Wrap(ErrInvalidQuery, fmt.Sprintf("min price %d above max price %d", q.MinPrice, q.MaxPrice))
	}
	if q.MaxSqft > 0 && q.MinSqft > q.MaxSqft {
		return eris.Wrap(ErrInvalidQuery, fmt.Sprintf("min sqft %d above max sqft %d", q.MinSqft, q.MaxSqft))
	}
	return nil
}

type Page struct {
	Listings []Listing `json:"properties"`
	Total    int       `json:"total"`
}
