// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/cybs3/cybs3/config"
	"github.com/cybs3/cybs3/value"
)

// fallbackRegion and fallbackEndpoint are the hard-coded defaults used
// when no CLI flag, environment variable, vault field, or config default
// resolves a value.
const (
	fallbackRegion   = "us-east-1"
	fallbackEndpoint = "s3.amazonaws.com"
)

// CLIOverrides carries the explicit flags a CLI invocation passed; empty
// strings are treated as unset.
type CLIOverrides struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
}

// EnvOverrides mirrors the environment variables the session resolver
// consults; empty strings are treated as unset.
type EnvOverrides struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
}

// EffectiveSettings is the strongly-typed result of resolving CLI, env,
// vault, and config-default inputs by priority.
type EffectiveSettings struct {
	Endpoint        string                  `mapstructure:"endpoint"`
	AccessKeyID     string                  `mapstructure:"accessKeyID"`
	SecretAccessKey value.Redacted[string] `mapstructure:"-"`
	Region          string                  `mapstructure:"region"`
	Bucket          string                  `mapstructure:"bucket"`
}

// resolveSettings merges cli, env, the active vault (if any), and the
// config's global defaults, first-match-wins in that order, falling back
// to hard-coded values for endpoint and region. The merged values are
// decoded into EffectiveSettings via mapstructure so the priority-merge
// logic and the typed result stay decoupled.
func resolveSettings(cli CLIOverrides, env EnvOverrides, vault *config.Vault, defaults config.Settings) (EffectiveSettings, error) {
	pick := func(values ...string) string {
		for _, v := range values {
			if v != "" {
				return v
			}
		}
		return ""
	}

	var vaultEndpoint, vaultAccessKey, vaultSecretKey, vaultRegion, vaultBucket string
	if vault != nil {
		vaultEndpoint = vault.Endpoint
		vaultAccessKey = vault.AccessKey
		vaultSecretKey = vault.SecretKey
		vaultRegion = vault.Region
		vaultBucket = vault.Bucket
	}

	merged := map[string]any{
		"endpoint":    pick(cli.Endpoint, "", vaultEndpoint, defaults.DefaultEndpoint, fallbackEndpoint),
		"accessKeyID": pick(cli.AccessKeyID, env.AccessKeyID, vaultAccessKey, defaults.DefaultAccessKey),
		"region":      pick(cli.Region, env.Region, vaultRegion, defaults.DefaultRegion, fallbackRegion),
		"bucket":      pick(cli.Bucket, env.Bucket, vaultBucket, defaults.DefaultBucket),
	}

	var out EffectiveSettings
	if err := mapstructure.WeakDecode(merged, &out); err != nil {
		return EffectiveSettings{}, fmt.Errorf("session: unable to decode effective settings: %w", err)
	}

	secret := pick(cli.SecretAccessKey, env.SecretAccessKey, vaultSecretKey, defaults.DefaultSecretKey)
	out.SecretAccessKey = value.AsRedacted(secret)

	return out, nil
}

// Endpoint is the parsed form of EffectiveSettings.Endpoint.
type Endpoint struct {
	Host   string
	Port   int
	UseSSL bool
}

// ParseEndpoint parses raw per §4.5: if it lacks a scheme, "https://" is
// prepended; the default port is 443 for https, 80 for http.
func ParseEndpoint(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, fmt.Errorf("session: endpoint must not be empty")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("session: invalid endpoint %q: %w", raw, err)
	}

	useSSL := u.Scheme == "https"

	host := u.Hostname()
	portStr := u.Port()
	port := 80
	if useSSL {
		port = 443
	}
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return Endpoint{}, fmt.Errorf("session: invalid endpoint port %q: %w", portStr, err)
		}
		port = p
	}

	return Endpoint{Host: host, Port: port, UseSSL: useSSL}, nil
}
