// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keychain defines the mnemonic secret-store collaborator
// interface and a file-based fallback implementation for platforms
// without a native OS secret store.
package keychain

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cybs3/cybs3/crypto/aead"
	"github.com/cybs3/cybs3/generator/randomness"
	ioatomic "github.com/cybs3/cybs3/ioutil/atomic"
)

// ErrNotFound is returned by Load when no mnemonic has been saved.
var ErrNotFound = errors.New("keychain: mnemonic not found")

// Store is the collaborator interface the session resolver uses to read a
// previously-saved mnemonic without prompting the user interactively. The
// CLI layer is expected to provide a native OS secret-store-backed
// implementation where available; FileStore below is the fallback used
// when none exists.
type Store interface {
	Save(phrase []string) error
	Load() ([]string, error)
	Delete() error
	Exists() bool
}

const (
	mnemonicFileName = "mnemonic.enc"
	machineKeyFile   = "machine.key"
	dirMode          fs.FileMode = 0o700
	fileMode         fs.FileMode = 0o600
)

// FileStore is a file-based fallback Store. It is NOT equivalent in
// security to a native OS secret store (Keychain, Secret Service,
// Credential Manager): the wrapping key lives next to the ciphertext on
// the same filesystem, so it only protects against casual disclosure
// (accidental `cat`, backup tooling that copies files without preserving
// permissions), not against an attacker with read access to the whole
// directory. Callers should prefer a native implementation when one is
// available.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir (the caller is
// responsible for choosing a private location, e.g. alongside config.enc).
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) mnemonicPath() string { return filepath.Join(f.dir, mnemonicFileName) }
func (f *FileStore) machineKeyPath() string { return filepath.Join(f.dir, machineKeyFile) }

// Exists reports whether a mnemonic has been saved.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.mnemonicPath())
	return err == nil
}

// Save wraps phrase under a freshly-generated (or existing) machine-local
// key and atomically writes it to disk.
func (f *FileStore) Save(phrase []string) error {
	if err := os.MkdirAll(f.dir, dirMode); err != nil {
		return fmt.Errorf("keychain: unable to create store directory: %w", err)
	}

	key, err := f.machineKey()
	if err != nil {
		return err
	}

	blob, err := aead.Seal(key, []byte(strings.Join(phrase, " ")))
	if err != nil {
		return fmt.Errorf("keychain: unable to seal mnemonic: %w", err)
	}

	if err := ioatomic.WriteFile(f.mnemonicPath(), bytes.NewReader(blob)); err != nil {
		return fmt.Errorf("keychain: unable to write mnemonic: %w", err)
	}
	return os.Chmod(f.mnemonicPath(), fileMode)
}

// Load unwraps the previously saved mnemonic, or returns ErrNotFound.
func (f *FileStore) Load() ([]string, error) {
	if !f.Exists() {
		return nil, ErrNotFound
	}

	key, err := f.machineKey()
	if err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(f.mnemonicPath())
	if err != nil {
		return nil, fmt.Errorf("keychain: unable to read mnemonic: %w", err)
	}

	plaintext, err := aead.Open(key, blob)
	if err != nil {
		return nil, fmt.Errorf("keychain: unable to open mnemonic: %w", err)
	}

	return strings.Fields(string(plaintext)), nil
}

// Delete removes the saved mnemonic, if any. Deleting an absent mnemonic
// is not an error.
func (f *FileStore) Delete() error {
	if err := os.Remove(f.mnemonicPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("keychain: unable to delete mnemonic: %w", err)
	}
	return nil
}

// machineKey loads the machine-local wrapping key, generating and
// persisting one on first use.
func (f *FileStore) machineKey() ([]byte, error) {
	if key, err := os.ReadFile(f.machineKeyPath()); err == nil {
		if len(key) != aead.KeySize {
			return nil, fmt.Errorf("keychain: machine key file is corrupted")
		}
		return key, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("keychain: unable to read machine key: %w", err)
	}

	if err := os.MkdirAll(f.dir, dirMode); err != nil {
		return nil, fmt.Errorf("keychain: unable to create store directory: %w", err)
	}

	key, err := randomness.Bytes(aead.KeySize)
	if err != nil {
		return nil, fmt.Errorf("keychain: unable to generate machine key: %w", err)
	}

	if err := ioatomic.WriteFile(f.machineKeyPath(), bytes.NewReader(key)); err != nil {
		return nil, fmt.Errorf("keychain: unable to persist machine key: %w", err)
	}
	if err := os.Chmod(f.machineKeyPath(), fileMode); err != nil {
		return nil, fmt.Errorf("keychain: unable to set machine key mode: %w", err)
	}

	return key, nil
}
