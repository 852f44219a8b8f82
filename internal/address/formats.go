package address

import (
	"sort"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/form"
)

// countryNames lists the countries the demo address sub-form offers.
var countryNames = map[string]string{
	"AT": "Austria",
	"CA": "Canada",
	"CH": "Switzerland",
	"DE": "Germany",
	"FR": "France",
	"GB": "United Kingdom",
	"NL": "Netherlands",
	"US": "United States",
}

// administrativeAreas holds the region selector options of countries whose
// postal addresses carry one.
var administrativeAreas = map[string][]form.Option{
	"CA": {
		{Value: "AB", Text: "Alberta"}, {Value: "BC", Text: "British Columbia"},
		{Value: "MB", Text: "Manitoba"}, {Value: "NB", Text: "New Brunswick"},
		{Value: "NL", Text: "Newfoundland and Labrador"}, {Value: "NS", Text: "Nova Scotia"},
		{Value: "NT", Text: "Northwest Territories"}, {Value: "NU", Text: "Nunavut"},
		{Value: "ON", Text: "Ontario"}, {Value: "PE", Text: "Prince Edward Island"},
		{Value: "QC", Text: "Quebec"}, {Value: "SK", Text: "Saskatchewan"},
		{Value: "YT", Text: "Yukon"},
	},
	"US": {
		{Value: "AL", Text: "Alabama"}, {Value: "AK", Text: "Alaska"}, {Value: "AZ", Text: "Arizona"},
		{Value: "AR", Text: "Arkansas"}, {Value: "CA", Text: "California"}, {Value: "CO", Text: "Colorado"},
		{Value: "CT", Text: "Connecticut"}, {Value: "DE", Text: "Delaware"}, {Value: "DC", Text: "District of Columbia"},
		{Value: "FL", Text: "Florida"}, {Value: "GA", Text: "Georgia"}, {Value: "HI", Text: "Hawaii"},
		{Value: "ID", Text: "Idaho"}, {Value: "IL", Text: "Illinois"}, {Value: "IN", Text: "Indiana"},
		{Value: "IA", Text: "Iowa"}, {Value: "KS", Text: "Kansas"}, {Value: "KY", Text: "Kentucky"},
		{Value: "LA", Text: "Louisiana"}, {Value: "ME", Text: "Maine"}, {Value: "MD", Text: "Maryland"},
		{Value: "MA", Text: "Massachusetts"}, {Value: "MI", Text: "Michigan"}, {Value: "MN", Text: "Minnesota"},
		{Value: "MS", Text: "Mississippi"}, {Value: "MO", Text: "Missouri"}, {Value: "MT", Text: "Montana"},
		{Value: "NE", Text: "Nebraska"}, {Value: "NV", Text: "Nevada"}, {Value: "NH", Text: "New Hampshire"},
		{Value: "NJ", Text: "New Jersey"}, {Value: "NM", Text: "New Mexico"}, {Value: "NY", Text: "New York"},
		{Value: "NC", Text: "North Carolina"}, {Value: "ND", Text: "North Dakota"}, {Value: "OH", Text: "Ohio"},
		{Value: "OK", Text: "Oklahoma"}, {Value: "OR", Text: "Oregon"}, {Value: "PA", Text: "Pennsylvania"},
		{Value: "RI", Text: "Rhode Island"}, {Value: "SC", Text: "South Carolina"}, {Value: "SD", Text: "South Dakota"},
		{Value: "TN", Text: "Tennessee"}, {Value: "TX", Text: "Texas"}, {Value: "UT", Text: "Utah"},
		{Value: "VT", Text: "Vermont"}, {Value: "VA", Text: "Virginia"}, {Value: "WA", Text: "Washington"},
		{Value: "WV", Text: "West Virginia"}, {Value: "WI", Text: "Wisconsin"}, {Value: "WY", Text: "Wyoming"},
	},
}

// Countries returns the country selector options sorted by name.
func Countries() []form.Option {
	opts := make([]form.Option, 0, len(countryNames))
	for code, name := range countryNames {
		opts = append(opts, form.Option{Value: code, Text: name})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Text < opts[j].Text })
	return opts
}

// SupportedCountry reports whether code is offered by the country selector.
func SupportedCountry(code string) bool {
	_, ok := countryNames[strings.ToUpper(code)]
	return ok
}

// SubForm builds an empty address sub-form laid out for country. Unknown
// countries get the generic layout without a region selector.
func SubForm(country string) *form.AddressForm {
	country = strings.ToUpper(strings.TrimSpace(country))

	inputs := make(map[string]string, len(form.TextRoles))
	for _, role := range form.TextRoles {
		inputs[role] = ""
	}

	sub := &form.AddressForm{
		Country:   country,
		Countries: Countries(),
		Inputs:    inputs,
	}
	if areas, ok := administrativeAreas[country]; ok {
		sub.AdministrativeAreas = append([]form.Option(nil), areas...)
	}
	return sub
}
