package rave

import "strings"

// Environment selects which gateway deployment requests go to.
type Environment string

const (
	Staging Environment = "staging"
	Live    Environment = "live"
)

const (
	stagingBaseURL = "https://rave-api-v2.herokuapp.com"
	liveBaseURL    = "https://api.ravepay.co"
)

// ParseEnvironment maps a configuration value to an Environment.
// Anything other than "live" falls back to staging.
func ParseEnvironment(s string) Environment {
	if Environment(strings.TrimSpace(s)) == Live {
		return Live
	}
	return Staging
}

func (e Environment) BaseURL() string {
	if e == Live {
		return liveBaseURL
	}
	return stagingBaseURL
}
