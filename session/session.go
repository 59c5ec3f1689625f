// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session resolves everything a command invocation needs: the
// mnemonic (from environment, secret store, or interactive prompt), the
// unlocked Config and Data Key, the active vault, and the effective S3
// settings.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cybs3/cybs3/config"
	"github.com/cybs3/cybs3/crypto/mnemonic"
	"github.com/cybs3/cybs3/keychain"
	"github.com/cybs3/cybs3/keymaterial"
)

// MnemonicEnvVar is the environment variable consulted first for the
// mnemonic, per §4.5.
const MnemonicEnvVar = "CYBS3_MNEMONIC"

// Sentinel errors raised during resolution.
var (
	// ErrMnemonicRequired is returned when no mnemonic source yields one
	// (env absent, secret store absent, and no interactive prompt was
	// supplied).
	ErrMnemonicRequired = errors.New("session: mnemonic required")
	// ErrUserCancelled is returned when the interactive prompt is
	// cancelled by the user.
	ErrUserCancelled = errors.New("session: cancelled by user")
)

// Prompt requests a mnemonic interactively. The CLI layer supplies a
// concrete implementation (terminal input); the core never reads stdin
// directly.
type Prompt func() ([]string, error)

// Resolver wires the mnemonic source, the Config Store, and the secret
// store into a single ownership holder exposing the session resolution
// operation.
type Resolver struct {
	store    *config.Store
	secrets  keychain.Store
	prompt   Prompt
}

// NewResolver returns a Resolver over store. secrets and prompt are
// optional collaborators for steps 2 and 3 of mnemonic source resolution;
// either may be nil, in which case that source is skipped.
func NewResolver(store *config.Store, secrets keychain.Store, prompt Prompt) *Resolver {
	return &Resolver{store: store, secrets: secrets, prompt: prompt}
}

// ResolveMnemonic resolves the mnemonic source with priority: environment
// variable CYBS3_MNEMONIC (whitespace-split) > OS secret store >
// interactive prompt. A source that returns a value must validate; an
// invalid value is a terminal error and is not a fallthrough condition.
// Only an absent source (the env var unset, or the secret store returning
// keychain.ErrNotFound) falls through to the next source.
func (r *Resolver) ResolveMnemonic() ([]string, error) {
	if raw := os.Getenv(MnemonicEnvVar); raw != "" {
		phrase := strings.Fields(raw)
		if err := mnemonic.Validate(phrase); err != nil {
			return nil, fmt.Errorf("session: %s: %w", MnemonicEnvVar, err)
		}
		return phrase, nil
	}

	if r.secrets != nil {
		phrase, err := r.secrets.Load()
		switch {
		case err == nil:
			if verr := mnemonic.Validate(phrase); verr != nil {
				return nil, fmt.Errorf("session: secret store: %w", verr)
			}
			return phrase, nil
		case errors.Is(err, keychain.ErrNotFound):
			// Absent: fall through to the interactive prompt.
		default:
			return nil, fmt.Errorf("session: unable to read secret store: %w", err)
		}
	}

	if r.prompt != nil {
		phrase, err := r.prompt()
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		if err := mnemonic.Validate(phrase); err != nil {
			return nil, fmt.Errorf("session: interactive prompt: %w", err)
		}
		return phrase, nil
	}

	return nil, ErrMnemonicRequired
}

// Session is the resolved output of a Resolve call: the unlocked Config,
// Data Key, active vault name (if any), and effective S3 settings.
type Session struct {
	Config          *config.Config
	DataKey         *keymaterial.DataKey
	ActiveVaultName string
	Settings        EffectiveSettings
	Endpoint        Endpoint
}

// Resolve performs the full C5 resolution: mnemonic, Config+Data Key,
// active vault, and effective settings. explicitVault, when non-empty,
// must name an existing vault or resolution fails with
// config.ErrVaultNotFound.
func (r *Resolver) Resolve(explicitVault string, cli CLIOverrides) (*Session, error) {
	phrase, err := r.ResolveMnemonic()
	if err != nil {
		return nil, err
	}

	cfg, dataKey, err := r.store.Load(phrase)
	if err != nil {
		return nil, err
	}

	activeVaultName := explicitVault
	if activeVaultName == "" {
		activeVaultName = cfg.ActiveVaultName
	}

	var vault *config.Vault
	if activeVaultName != "" {
		vault, err = cfg.VaultByName(activeVaultName)
		if err != nil {
			return nil, err
		}
	}

	env := EnvOverrides{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Region:          os.Getenv("AWS_REGION"),
		Bucket:          os.Getenv("AWS_BUCKET"),
	}

	settings, err := resolveSettings(cli, env, vault, cfg.Settings)
	if err != nil {
		return nil, err
	}

	endpoint, err := ParseEndpoint(settings.Endpoint)
	if err != nil {
		return nil, err
	}

	return &Session{
		Config:          cfg,
		DataKey:         dataKey,
		ActiveVaultName: activeVaultName,
		Settings:        settings,
		Endpoint:        endpoint,
	}, nil
}
