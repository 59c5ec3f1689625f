// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package aead implements the single-shot AEAD primitive: AES-256-GCM over
// a bounded buffer with a combined nonce∥ciphertext∥tag wire form.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/cybs3/cybs3/generator/randomness"
)

const (
	// KeySize is the required symmetric key size, in bytes (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce size, in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag size, in bytes.
	TagSize = 16
	// Overhead is the number of bytes seal adds to a plaintext.
	Overhead = NonceSize + TagSize
)

// ErrAuthFailure is returned by Open when the input is shorter than the
// minimum frame size or the GCM tag does not verify.
var ErrAuthFailure = errors.New("aead: authentication failure")

// Seal encrypts plaintext under key and returns nonce ∥ ciphertext ∥ tag.
// A fresh random nonce is drawn for every call; no per-key counter is
// maintained, so callers must scope keys so that 2^32 calls under one key
// remain an acceptable collision bound (see the Data Key and Master Key
// lifetimes).
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := randomness.Bytes(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("aead: unable to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a nonce∥ciphertext∥tag blob produced by Seal under key. It
// fails with ErrAuthFailure if blob is shorter than Overhead or the tag
// does not verify.
func Open(key, blob []byte) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, ErrAuthFailure
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailure
	}

	return plaintext, nil
}

// newGCM builds the AES-256-GCM AEAD instance for key.
func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aead: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: unable to initialize cipher block: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("aead: unable to initialize gcm: %w", err)
	}

	return gcm, nil
}
