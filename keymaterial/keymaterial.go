// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keymaterial wraps the two fixed key roles the core works with —
// the Master Key and the Data Key — in memguard enclaves, so the raw key
// bytes never sit in ordinary, swappable, loggable Go memory outside a
// short locked scope.
package keymaterial

import (
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/cybs3/cybs3/crypto/aead"
	"github.com/cybs3/cybs3/crypto/streamcodec"
)

// Alias is a diagnostic-only handle identifying a key instance in logs. It
// is never persisted and never discloses the key material itself.
type Alias string

func newAlias() Alias {
	return Alias(uuid.New().String())
}

// MasterKey is the 32-byte symmetric key derived from a mnemonic, used only
// to wrap and unwrap the Config record for the duration of one command
// invocation.
type MasterKey struct {
	alias Alias
	enc   *memguard.Enclave
}

// NewMasterKey takes ownership of raw (the caller must not reuse it) and
// returns a MasterKey enclave wrapping it. raw must be aead.KeySize bytes.
func NewMasterKey(raw []byte) (*MasterKey, error) {
	if len(raw) != aead.KeySize {
		return nil, fmt.Errorf("keymaterial: master key must be %d bytes, got %d", aead.KeySize, len(raw))
	}

	return &MasterKey{
		alias: newAlias(),
		enc:   memguard.NewEnclave(raw),
	}, nil
}

// Alias returns the key's diagnostic handle.
func (k *MasterKey) Alias() Alias { return k.alias }

// Seal seals plaintext under the Master Key (§C2, single-shot AEAD).
func (k *MasterKey) Seal(plaintext []byte) ([]byte, error) {
	lb, err := k.enc.Open()
	if err != nil {
		return nil, fmt.Errorf("keymaterial: unable to open master key enclave: %w", err)
	}
	defer lb.Destroy()

	return aead.Seal(lb.Bytes(), plaintext)
}

// Open opens a blob produced by Seal under the Master Key.
func (k *MasterKey) Open(blob []byte) ([]byte, error) {
	lb, err := k.enc.Open()
	if err != nil {
		return nil, fmt.Errorf("keymaterial: unable to open master key enclave: %w", err)
	}
	defer lb.Destroy()

	return aead.Open(lb.Bytes(), blob)
}

// DataKey is the 32-byte symmetric key generated once at first use and
// stored inside the encrypted Config. It is used to encrypt and decrypt
// every object body for the lifetime of the user's data; it is never
// rewrapped by routine mutations.
type DataKey struct {
	alias Alias
	enc   *memguard.Enclave
}

// NewDataKey takes ownership of raw (the caller must not reuse it) and
// returns a DataKey enclave wrapping it. raw must be aead.KeySize bytes.
func NewDataKey(raw []byte) (*DataKey, error) {
	if len(raw) != aead.KeySize {
		return nil, fmt.Errorf("keymaterial: data key must be %d bytes, got %d", aead.KeySize, len(raw))
	}

	return &DataKey{
		alias: newAlias(),
		enc:   memguard.NewEnclave(raw),
	}, nil
}

// Alias returns the key's diagnostic handle.
func (k *DataKey) Alias() Alias { return k.alias }

// EncryptStream wraps r as the chunked AEAD ciphertext (§C3) of r's content
// under the Data Key. The Data Key enclave stays open, locked, for the
// lifetime of the returned reader; Close must be called when done reading
// to destroy the locked buffer.
func (k *DataKey) EncryptStream(r io.Reader) (io.ReadCloser, error) {
	lb, err := k.enc.Open()
	if err != nil {
		return nil, fmt.Errorf("keymaterial: unable to open data key enclave: %w", err)
	}

	return &enclaveBoundReader{r: streamcodec.Encrypt(lb.Bytes(), r), lb: lb}, nil
}

// DecryptStream wraps r as the plaintext of the chunked AEAD ciphertext r
// carries under the Data Key. Close must be called when done reading to
// destroy the locked buffer.
func (k *DataKey) DecryptStream(r io.Reader) (io.ReadCloser, error) {
	lb, err := k.enc.Open()
	if err != nil {
		return nil, fmt.Errorf("keymaterial: unable to open data key enclave: %w", err)
	}

	return &enclaveBoundReader{r: streamcodec.Decrypt(lb.Bytes(), r), lb: lb}, nil
}

// enclaveBoundReader pairs a streamcodec reader with the memguard locked
// buffer supplying its key, so the key remains valid for the reader's
// lifetime and is destroyed exactly once when the caller is finished.
type enclaveBoundReader struct {
	r  io.Reader
	lb *memguard.LockedBuffer
}

func (e *enclaveBoundReader) Read(p []byte) (int, error) { return e.r.Read(p) }

func (e *enclaveBoundReader) Close() error {
	e.lb.Destroy()
	return nil
}
