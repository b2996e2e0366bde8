package config

import "fmt"

// Credentials is the recognized credential tuple for the remote
// adapter's spawned subprocess (spec.md §4.4, §6). Exactly one of the
// two shapes below must be present: {BaseURL, Email, APIToken} for a
// cloud instance, or {BaseURL, PersonalToken} for a self-hosted one.
type Credentials struct {
	BaseURL       string
	Email         string
	APIToken      string
	PersonalToken string
}

// Cloud reports whether these credentials are the email+API-token
// shape, as opposed to a self-hosted personal token.
func (c Credentials) Cloud() bool {
	return c.PersonalToken == ""
}

// Env renders the credentials as the environment passed to the spawned
// remote-adapter subprocess (spec.md §4.4 "Credentials: supplied via
// environment to the child process").
func (c Credentials) Env() []string {
	env := []string{"BASE_URL=" + c.BaseURL}
	if c.Cloud() {
		env = append(env, "EMAIL="+c.Email, "API_TOKEN="+c.APIToken)
	} else {
		env = append(env, "PERSONAL_TOKEN="+c.PersonalToken)
	}
	return env
}

// LoadCredentials validates that a recognized credential tuple is
// present in the environment and fails fast with a clear message
// otherwise (spec.md §4.4).
func LoadCredentials(getenv func(string) string) (Credentials, error) {
	c := Credentials{
		BaseURL:       getenv("BASE_URL"),
		Email:         getenv("EMAIL"),
		APIToken:      getenv("API_TOKEN"),
		PersonalToken: getenv("PERSONAL_TOKEN"),
	}

	if c.BaseURL == "" {
		return Credentials{}, fmt.Errorf("BASE_URL is required")
	}

	hasCloud := c.Email != "" && c.APIToken != ""
	hasSelfHosted := c.PersonalToken != ""

	switch {
	case hasCloud && hasSelfHosted:
		return Credentials{}, fmt.Errorf("ambiguous credentials: set either EMAIL+API_TOKEN or PERSONAL_TOKEN, not both")
	case hasCloud:
		return c, nil
	case hasSelfHosted:
		return c, nil
	default:
		return Credentials{}, fmt.Errorf("missing credentials: set EMAIL and API_TOKEN (cloud) or PERSONAL_TOKEN (self-hosted)")
	}
}
