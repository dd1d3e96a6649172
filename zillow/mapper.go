package zillow

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/yourorg/listing-sync/internal/listing"
)

// stringNumber accepts string or number JSON and stores as string
type stringNumber string

func (s *stringNumber) UnmarshalJSON(b []byte) error {
	// empty/null -> empty string
	if string(b) == "null" {
		*s = ""
		return nil
	}
	// If already a quoted string
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = stringNumber(str)
		return nil
	}
	// Try as number, keep textual form
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = stringNumber(num.String())
	return nil
}

// looseNumber accepts numbers, numeric strings, and anything else as 0.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	var s stringNumber
	if err := s.UnmarshalJSON(b); err != nil {
		*n = 0
		return nil
	}
	clean := strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(string(s)))
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = looseNumber(f)
	return nil
}

func (n looseNumber) Int() int { return int(math.Round(float64(n))) }

func MapSearchPayload(raw []byte, placeholder string) (listing.Page, error) {
	var root searchResponse
	if err := json.Unmarshal(raw, &root); err != nil {
		return listing.Page{}, err
	}
	out := make([]listing.Listing, 0, len(root.Results))
	for _, r := range root.Results {
		id := string(r.Zpid)
		if id == "" {
			continue
		}
		out = append(out, listing.Listing{
			ID:           id,
			Address:      r.StreetAddress,
			City:         r.City,
			State:        r.State,
			Zip:          r.Zipcode,
			Price:        maxInt(r.Price.Int(), 0),
			Beds:         maxInt(r.Bedrooms.Int(), 0),
			Baths:        math.Max(float64(r.Bathrooms), 0),
			Sqft:         maxInt(r.LivingArea.Int(), 0),
			YearBuilt:    maxInt(r.YearBuilt.Int(), 0),
			ImageURL:     imageOrPlaceholder(r.ImgSrc, placeholder),
			PropertyType: r.HomeType,
			Zestimate:    maxInt(r.Zestimate.Int(), 0),
			TaxValue:     maxInt(r.TaxAssessedValue.Int(), 0),
			LotSize:      math.Max(float64(firstNonZero(r.LotAreaValue, r.LotSize)), 0),
			Description:  r.Description,
			DetailURL:    detailURL(id),
			Agent:        listing.LoadingAgent(),
		})
	}
	total := root.TotalResultCount.Int()
	if total == 0 {
		total = len(out)
	}
	return listing.Page{Listings: out, Total: total}, nil
}

// MapAgentPayload extracts attribution info from a /propertyV2 body. The
// provider has shipped it both at the top level and under "data".
func MapAgentPayload(raw []byte) (listing.AgentDetail, error) {
	var root propertyV2Response
	if err := json.Unmarshal(raw, &root); err != nil {
		return listing.AgentDetail{}, err
	}
	attr := root.AttributionInfo
	if attr == nil && root.Data != nil {
		attr = root.Data.AttributionInfo
	}
	if attr == nil {
		attr = &attributionInfo{}
	}
	year := root.YearBuilt.Int()
	if year == 0 && root.Data != nil {
		year = firstNonZero(root.Data.YearBuilt, root.Data.YearBuiltSnake).Int()
	}
	return listing.AgentDetail{
		Name:       orNA(attr.AgentName),
		BrokerName: orNA(attr.BrokerName),
		Phone:      orNA(attr.AgentPhoneNumber),
		Email:      orNA(attr.AgentEmail),
		State:      listing.AgentResolved,
		YearBuilt:  maxInt(year, 0),
	}, nil
}

func MapPropertyPayload(id string, raw []byte, placeholder string) (listing.Listing, error) {
	agent, err := MapAgentPayload(raw)
	if err != nil {
		return listing.Listing{}, err
	}
	var root propertyV2Response
	if err := json.Unmarshal(raw, &root); err != nil {
		return listing.Listing{}, err
	}
	d := root.Data
	if d == nil {
		d = &propertyData{}
	}
	img := ""
	if len(d.Photos) > 0 {
		img = d.Photos[0]
	}
	desc := d.Description
	if desc == "" {
		desc = "No description available."
	}
	return listing.Listing{
		ID:           id,
		Address:      d.Address.StreetAddress,
		City:         d.Address.City,
		State:        d.Address.State,
		Zip:          d.Address.Zipcode,
		Price:        maxInt(d.ListPrice.Int(), 0),
		Beds:         maxInt(d.Bedrooms.Int(), 0),
		Baths:        math.Max(float64(d.Bathrooms), 0),
		Sqft:         maxInt(d.LivingArea.Int(), 0),
		YearBuilt:    agent.YearBuilt,
		ImageURL:     imageOrPlaceholder(img, placeholder),
		PropertyType: d.HomeType,
		LotSize:      math.Max(float64(d.LotSize), 0),
		Description:  desc,
		DetailURL:    detailURL(id),
		Agent:        agent,
	}, nil
}

func detailURL(id string) string {
	return "https://www.zillow.com/homedetails/" + id
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return listing.NotAvailable
	}
	return strings.TrimSpace(s)
}

func firstNonZero(vals ...looseNumber) looseNumber {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func maxInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
