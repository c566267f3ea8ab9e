package integration

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldKey returns the case-folded, trimmed form of s used for
// case-insensitive SKU and carrier comparisons. A new Caser is built per call
// because Casers are not safe for concurrent use.
func FoldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// carrierAliases maps folded internal carrier names to the platform's
// canonical tracking company names
var carrierAliases = map[string]string{
	"usps":                 "USPS",
	"us postal service":    "USPS",
	"united states postal": "USPS",
	"ups":                  "UPS",
	"united parcel":        "UPS",
	"fedex":                "FedEx",
	"fed ex":               "FedEx",
	"federal express":      "FedEx",
	"dhl":                  "DHL Express",
	"dhl express":          "DHL Express",
	"dhl ecommerce":        "DHL eCommerce",
	"dhl ecom":             "DHL eCommerce",
	"canada post":          "Canada Post",
	"canadapost":           "Canada Post",
	"royal mail":           "Royal Mail",
	"royalmail":            "Royal Mail",
	"australia post":       "Australia Post",
	"auspost":              "Australia Post",
	"ontrac":               "OnTrac",
	"lasership":            "LaserShip",
	"purolator":            "Purolator",
	"amazon":               "Amazon Logistics US",
	"amazon logistics":     "Amazon Logistics US",
}

// CanonicalCarrier maps an internal carrier string to the platform's name for
// it. Unknown carriers pass through unchanged.
func CanonicalCarrier(carrier string) string {
	if name, ok := carrierAliases[FoldKey(carrier)]; ok {
		return name
	}
	return carrier
}
