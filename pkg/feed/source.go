package feed

import (
	"net/http"
	"time"

	"github.com/gridglance/gridglance/pkg/types"
)

const (
	// DefaultOctopusURL is the Agile tariff unit rates for region J.
	DefaultOctopusURL = "https://api.octopus.energy/v1/products/AGILE-18-02-21/electricity-tariffs/E-1R-AGILE-18-02-21-J/standard-unit-rates/"

	// DefaultCarbonIntensityURL is the public national carbon intensity API.
	DefaultCarbonIntensityURL = "https://api.carbonintensity.org.uk/intensity/"
)

// AuthScheme describes how a credential is attached to a request.
type AuthScheme int

const (
	// AuthBearer sends the credential as an Authorization bearer token.
	AuthBearer AuthScheme = iota
	// AuthBasic sends the credential as the basic auth username with an
	// empty password.
	AuthBasic
)

// DecodeFunc converts a successful response body into interval records in
// the order the feed returned them.
type DecodeFunc func(body []byte) ([]types.IntervalRecord, error)

// Source describes a single time-series endpoint.
type Source struct {
	Name string `validate:"required"`
	URL  string `validate:"required,url"`

	// Credential is an opaque token. Empty means an unauthenticated request.
	Credential string
	Auth       AuthScheme

	Decode DecodeFunc `validate:"required"`
}

func (s Source) authorize(req *http.Request) {
	if s.Credential == "" {
		return
	}
	switch s.Auth {
	case AuthBasic:
		req.SetBasicAuth(s.Credential, "")
	default:
		req.Header.Set("Authorization", "Bearer "+s.Credential)
	}
}

// Octopus returns the source for Octopus Energy unit rates. The API key is
// sent as the basic auth username.
func Octopus(apiURL, apiKey string) Source {
	return Source{
		Name:       "octopus",
		URL:        apiURL,
		Credential: apiKey,
		Auth:       AuthBasic,
		Decode:     DecodeOctopus,
	}
}

// CarbonIntensity returns the source for the public carbon intensity API.
func CarbonIntensity(apiURL string) Source {
	return Source{
		Name:   "carbon",
		URL:    apiURL,
		Decode: DecodeCarbonIntensity,
	}
}

func parseTime(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
