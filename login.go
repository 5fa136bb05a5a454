package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/raine/stockmeta/internal/marketplace"
)

type loginFlags struct {
	*flag.FlagSet
	apiKey         string
	accessToken    string
	clientSecret   string
	technicalAcct  string
	orgID          string
	privateKeyFile string
}

func newLoginFlags() *loginFlags {
	f := &loginFlags{FlagSet: flag.NewFlagSet("login", flag.ContinueOnError)}
	f.StringVar(&f.apiKey, "api-key", "", "API key or client id")
	f.StringVar(&f.accessToken, "access-token", "", "OAuth access token")
	f.StringVar(&f.clientSecret, "client-secret", "", "client secret (Adobe service account)")
	f.StringVar(&f.technicalAcct, "technical-account", "", "technical account id (Adobe service account)")
	f.StringVar(&f.orgID, "org", "", "organization id (Adobe service account)")
	f.StringVar(&f.privateKeyFile, "private-key", "", "PEM private key file (Adobe service account)")
	return f
}

// credentials assembles the parsed flags. Secrets left empty fall back to
// STOCKMETA_API_KEY and STOCKMETA_ACCESS_TOKEN so they stay out of shell
// history.
func (f *loginFlags) credentials() (marketplace.Credentials, error) {
	creds := marketplace.Credentials{
		APIKey:             f.apiKey,
		AccessToken:        f.accessToken,
		ClientSecret:       f.clientSecret,
		TechnicalAccountID: f.technicalAcct,
		OrgID:              f.orgID,
	}
	if creds.APIKey == "" {
		creds.APIKey = os.Getenv("STOCKMETA_API_KEY")
	}
	if creds.AccessToken == "" {
		creds.AccessToken = os.Getenv("STOCKMETA_ACCESS_TOKEN")
	}
	if f.privateKeyFile != "" {
		pem, err := os.ReadFile(f.privateKeyFile)
		if err != nil {
			return creds, fmt.Errorf("failed to read private key: %w", err)
		}
		creds.PrivateKeyPEM = string(pem)
	}
	if creds.APIKey == "" && creds.AccessToken == "" && creds.PrivateKeyPEM == "" {
		return creds, fmt.Errorf("no credentials given")
	}
	return creds, nil
}
