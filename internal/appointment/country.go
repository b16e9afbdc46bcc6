package appointment

import (
	"fmt"
	"strings"
)

type Country string

const (
	CountryPE Country = "PE"
	CountryCL Country = "CL"
)

// CountryConfig is static per-country data read by routing and tracing only.
type CountryConfig struct {
	Code      Country
	Name      string
	Timezone  string
	Currency  string
	QueueName string
}

var countryConfigs = map[Country]CountryConfig{
	CountryPE: {
		Code:      CountryPE,
		Name:      "Peru",
		Timezone:  "America/Lima",
		Currency:  "PEN",
		QueueName: "appointments-pe-queue",
	},
	CountryCL: {
		Code:      CountryCL,
		Name:      "Chile",
		Timezone:  "America/Santiago",
		Currency:  "CLP",
		QueueName: "appointments-cl-queue",
	},
}

// SupportedCountries lists the routable countries in a stable order.
func SupportedCountries() []Country {
	return []Country{CountryPE, CountryCL}
}

// NewCountry upper-cases and trims raw and accepts only supported codes.
func NewCountry(raw string) (Country, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return "", newValidationError("countryISO", "countryISO is required", "required")
	}
	c := Country(v)
	if _, ok := countryConfigs[c]; !ok {
		return "", newValidationError("countryISO",
			fmt.Sprintf("country %q is not supported (supported: PE, CL)", v), "unsupported_country")
	}
	return c, nil
}

func (c Country) Config() CountryConfig {
	return countryConfigs[c]
}

func (c Country) String() string {
	return string(c)
}
