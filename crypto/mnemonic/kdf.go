// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package mnemonic

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// seedIterations is the standard BIP39 PBKDF2 iteration count.
	seedIterations = 2048
	// seedLength is the standard BIP39 seed length in bytes.
	seedLength = 64
	// masterKeyLength is the Master Key size in bytes (AES-256).
	masterKeyLength = 32
)

// seedSalt is the fixed BIP39 PBKDF2 salt used in the absence of a user
// passphrase.
const seedSalt = "mnemonic"

// masterKeySalt domain-separates the Master Key derived from the BIP39 seed
// from any sibling key this application may derive from the same seed in
// the future.
const masterKeySalt = "cybs3-vault"

// DeriveMasterKey derives the 32-byte Master Key from a validated mnemonic.
//
// The derivation is two-stage: PBKDF2-HMAC-SHA512(words joined by a single
// space, salt "mnemonic", 2048 iterations, 64 bytes) produces the standard
// BIP39 seed, then HKDF-SHA256(seed, salt "cybs3-vault", no info, 32 bytes)
// produces the Master Key. DeriveMasterKey does not itself validate the
// mnemonic; callers must call Validate first.
func DeriveMasterKey(phrase []string) ([]byte, error) {
	password := strings.Join(phrase, " ")

	seed := pbkdf2.Key([]byte(password), []byte(seedSalt), seedIterations, seedLength, sha512.New)

	kdf := hkdf.New(sha256.New, seed, []byte(masterKeySalt), nil)

	key := make([]byte, masterKeyLength)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("unable to expand master key via hkdf: %w", err)
	}

	return key, nil
}
