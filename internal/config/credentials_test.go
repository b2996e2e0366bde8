package config

import "testing"

func TestLoadCredentialsCloud(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{
		"BASE_URL":  "https://example.atlassian.net",
		"EMAIL":     "dev@example.com",
		"API_TOKEN": "tok",
	})

	creds, err := LoadCredentials(env)
	if err != nil {
		t.Fatalf("LoadCredentials() error: %v", err)
	}
	if !creds.Cloud() {
		t.Error("expected cloud credentials")
	}
}

func TestLoadCredentialsSelfHosted(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{
		"BASE_URL":       "https://jira.internal",
		"PERSONAL_TOKEN": "tok",
	})

	creds, err := LoadCredentials(env)
	if err != nil {
		t.Fatalf("LoadCredentials() error: %v", err)
	}
	if creds.Cloud() {
		t.Error("expected self-hosted credentials")
	}
}

func TestLoadCredentialsMissing(t *testing.T) {
	t.Parallel()
	if _, err := LoadCredentials(mockEnv(nil)); err == nil {
		t.Error("expected error for missing credentials")
	}
}

func TestLoadCredentialsAmbiguous(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{
		"BASE_URL":       "https://example.com",
		"EMAIL":          "dev@example.com",
		"API_TOKEN":      "tok",
		"PERSONAL_TOKEN": "tok2",
	})
	if _, err := LoadCredentials(env); err == nil {
		t.Error("expected error for ambiguous credentials")
	}
}

func TestLoadCredentialsMissingBaseURL(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{"EMAIL": "a@b.com", "API_TOKEN": "t"})
	if _, err := LoadCredentials(env); err == nil {
		t.Error("expected error for missing BASE_URL")
	}
}
