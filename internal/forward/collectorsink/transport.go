// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package collectorsink

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/jwt"
)

// newTransport returns a transport that authenticates requests with the oauth2
// flow selected by cfg, or the default transport when none is configured.
func newTransport(ctx context.Context, cfg Config) http.RoundTripper {
	var source oauth2.TokenSource
	switch {
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		config := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		source = config.TokenSource(context.WithoutCancel(ctx))
	case cfg.ClientID != "" && cfg.PrivateKey != "":
		config := &jwt.Config{
			Subject:      cfg.ClientID,
			PrivateKey:   []byte(cfg.PrivateKey),
			PrivateKeyID: cfg.PrivateKeyID,
			TokenURL:     cfg.TokenURL,
		}
		source = config.TokenSource(context.WithoutCancel(ctx))
	}

	if source == nil {
		return http.DefaultTransport
	}

	return &oauth2.Transport{
		Source: source,
	}
}
