package zillow

type searchResponse struct {
	Results          []rawListing `json:"results"`
	TotalResultCount looseNumber  `json:"totalResultCount"`
}

type rawListing struct {
	Zpid             stringNumber `json:"zpid"`
	StreetAddress    string       `json:"streetAddress"`
	City             string       `json:"city"`
	State            string       `json:"state"`
	Zipcode          string       `json:"zipcode"`
	Price            looseNumber  `json:"price"`
	Bedrooms         looseNumber  `json:"bedrooms"`
	Bathrooms        looseNumber  `json:"bathrooms"`
	LivingArea       looseNumber  `json:"livingArea"`
	ImgSrc           string       `json:"imgSrc"`
	HomeType         string       `json:"homeType"`
	Zestimate        looseNumber  `json:"zestimate"`
	TaxAssessedValue looseNumber  `json:"taxAssessedValue"`
	LotSize          looseNumber  `json:"lotSize"`
	LotAreaValue     looseNumber  `json:"lotAreaValue"`
	YearBuilt        looseNumber  `json:"yearBuilt"`
	Description      string       `json:"description"`
}

type attributionInfo struct {
	AgentName        string `json:"agentName"`
	BrokerName       string `json:"brokerName"`
	AgentPhoneNumber string `json:"agentPhoneNumber"`
	AgentEmail       string `json:"agentEmail"`
}

type propertyV2Response struct {
	Data            *propertyData    `json:"data"`
	YearBuilt       looseNumber      `json:"yearBuilt"`
	AttributionInfo *attributionInfo `json:"attributionInfo"`
}

type propertyData struct {
	Address struct {
		StreetAddress string `json:"streetAddress"`
		City          string `json:"city"`
		State         string `json:"state"`
		Zipcode       string `json:"zipcode"`
		Neighborhood  string `json:"neighborhood"`
		Subdivision   string `json:"subdivision"`
	} `json:"address"`
	ListPrice       looseNumber      `json:"list_price"`
	Bedrooms        looseNumber      `json:"bedrooms"`
	Bathrooms       looseNumber      `json:"bathrooms"`
	LivingArea      looseNumber      `json:"living_area"`
	LotSize         looseNumber      `json:"lot_size"`
	Photos          []string         `json:"photos"`
	HomeType        string           `json:"home_type"`
	YearBuilt       looseNumber      `json:"yearBuilt"`
	YearBuiltSnake  looseNumber      `json:"year_built"`
	Description     string           `json:"description"`
	AttributionInfo *attributionInfo `json:"attributionInfo"`
}
