// Package listings provides a client for the property listings API that
// specialists use to pull inventory for a zip code before analysis.
package listings

import (
	"context"
	"regexp"
)

// Listing is a single property listing as returned by the listings API.
// Fields that the upstream omits decode to their zero value.
type Listing struct {
	ID                 string  `json:"id"`
	Address            string  `json:"address"`
	ZipCode            string  `json:"zipCode"`
	PropertyType       string  `json:"propertyType"`
	ListPrice          float64 `json:"listPrice"`
	EstimatedRent      float64 `json:"estimatedRent"`
	Bedrooms           int     `json:"bedrooms"`
	Bathrooms          float64 `json:"bathrooms"`
	Sqft               int     `json:"sqft"`
	YearBuilt          int     `json:"yearBuilt"`
	PropertyTaxPerYear float64 `json:"propertyTaxPerYear"`
	InsurancePerYear   float64 `json:"insurancePerYear"`
	HOAPerYear         float64 `json:"hoaPerYear"`
}

// Source fetches listings for a zip code.
type Source interface {
	FetchByZip(ctx context.Context, zipCode string) ([]Listing, error)
}

var zipCodePattern = regexp.MustCompile(`\b(\d{5})\b`)

// ExtractZipCode pulls the first 5-digit zip code out of free-form request
// text. It returns false when the text contains none.
func ExtractZipCode(text string) (string, bool) {
	match := zipCodePattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}
