package feed

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
)

const (
	NameOctopus = "octopus"
	NameCarbon  = "carbon"
)

// Flags holds the feed command-line flags. Its methods must only be called
// from within lflag.Do.
type Flags struct {
	name            *string
	octopusURL      *string
	carbonURL       *string
	keyFile         *string
	dotenvFile      *string
	timeout         *time.Duration
	breakerFailures *int
}

// RegisterFlags sets up the flags for selecting and reaching a feed.
func RegisterFlags() *Flags {
	return &Flags{
		name:            lflag.String("feed", NameOctopus, "Feed to serve (available: octopus, carbon)"),
		octopusURL:      lflag.String("octopus-api-url", DefaultOctopusURL, "URL for the Octopus Energy unit rates API"),
		carbonURL:       lflag.String("carbon-api-url", DefaultCarbonIntensityURL, "URL for the carbon intensity API"),
		keyFile:         lflag.String("api-key-file", "", "File containing the Octopus Energy API key"),
		dotenvFile:      lflag.String("dotenv-file", "", "dotenv file to read "+CredentialEnv+" from when no api-key-file is set"),
		timeout:         lflag.Duration("fetch-timeout", 10*time.Second, "Timeout for a single feed request"),
		breakerFailures: lflag.Int("breaker-max-failures", 0, "Consecutive fetch failures before the circuit breaker opens (0 disables it)"),
	}
}

// Name returns the selected feed name.
func (f *Flags) Name() string {
	return *f.name
}

// Source builds the selected source, loading the credential if the feed
// needs one.
func (f *Flags) Source() (Source, error) {
	switch *f.name {
	case NameOctopus:
		key, err := LoadCredential(*f.keyFile, *f.dotenvFile)
		if err != nil {
			return Source{}, fmt.Errorf("octopus feed requires an api key: %w", err)
		}
		return Octopus(*f.octopusURL, key), nil
	case NameCarbon:
		return CarbonIntensity(*f.carbonURL), nil
	default:
		return Source{}, fmt.Errorf("unknown feed: %s", *f.name)
	}
}

// Fetcher builds the fetcher from the timeout and breaker flags.
func (f *Flags) Fetcher() *HTTPFetcher {
	return NewHTTPFetcher(*f.timeout, *f.breakerFailures)
}
