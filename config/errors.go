// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

// Sentinel errors raised by the Store. Wrap with fmt.Errorf("...: %w", err)
// as they cross layers; callers test with errors.Is.
var (
	// ErrConfigNotFound is reserved for explicit "no config" call paths;
	// Load never returns it on the happy path (it creates a fresh config
	// instead).
	ErrConfigNotFound = errors.New("config: not found")
	// ErrDecryptionFailed is returned when the Master Key derived from
	// the supplied mnemonic does not open config.enc (wrong mnemonic or
	// corrupted/tampered file).
	ErrDecryptionFailed = errors.New("config: decryption failed")
	// ErrUnsupportedVersion is returned when config.enc decodes to a
	// version this build does not understand.
	ErrUnsupportedVersion = errors.New("config: unsupported version")
	// ErrVaultNotFound is returned when an explicitly named vault does
	// not exist in the Config.
	ErrVaultNotFound = errors.New("config: vault not found")
)
