// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	ioatomic "github.com/cybs3/cybs3/ioutil/atomic"
	"github.com/cybs3/cybs3/crypto/mnemonic"
	"github.com/cybs3/cybs3/generator/randomness"
	"github.com/cybs3/cybs3/keymaterial"
	"github.com/cybs3/cybs3/log"
)

const (
	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600

	configDirName    = ".cybs3"
	configFileName   = "config.enc"
	legacySettingsFile = ".cybs3.json"
	legacyVaultsFile   = ".cybs3.vaults"
	backupSuffix       = ".bak"
)

// Store owns the on-disk encrypted configuration rooted at home.
type Store struct {
	home string
}

// NewStore returns a Store rooted at home (typically os.UserHomeDir()).
func NewStore(home string) *Store {
	return &Store{home: home}
}

// Dir returns the directory the Store keeps config.enc in, so sibling
// on-disk collaborators (e.g. a keychain.FileStore) can share it.
func (s *Store) Dir() string { return s.dir() }

func (s *Store) dir() string        { return filepath.Join(s.home, configDirName) }
func (s *Store) configPath() string { return filepath.Join(s.dir(), configFileName) }
func (s *Store) legacySettingsPath() string {
	return filepath.Join(s.home, legacySettingsFile)
}
func (s *Store) legacyVaultsPath() string { return filepath.Join(s.home, legacyVaultsFile) }

// Load unlocks the Config for mnemonic, creating a fresh one (or migrating
// a legacy install) on first use.
func (s *Store) Load(phrase []string) (*Config, *keymaterial.DataKey, error) {
	if err := os.MkdirAll(s.dir(), dirMode); err != nil {
		return nil, nil, fmt.Errorf("config: unable to create config directory: %w", err)
	}
	if err := os.Chmod(s.dir(), dirMode); err != nil {
		return nil, nil, fmt.Errorf("config: unable to set config directory mode: %w", err)
	}

	rawMaster, err := mnemonic.DeriveMasterKey(phrase)
	if err != nil {
		return nil, nil, fmt.Errorf("config: unable to derive master key: %w", err)
	}
	master, err := keymaterial.NewMasterKey(rawMaster)
	if err != nil {
		return nil, nil, err
	}

	if _, err := os.Stat(s.configPath()); errors.Is(err, fs.ErrNotExist) {
		if s.hasLegacyFiles() {
			return s.migrate(phrase, master)
		}
		return s.initFresh(master)
	} else if err != nil {
		return nil, nil, fmt.Errorf("config: unable to stat config file: %w", err)
	}

	return s.openExisting(master)
}

// Save seals cfg under the Master Key derived from phrase and atomically
// rewrites config.enc.
func (s *Store) Save(cfg *Config, phrase []string) error {
	rawMaster, err := mnemonic.DeriveMasterKey(phrase)
	if err != nil {
		return fmt.Errorf("config: unable to derive master key: %w", err)
	}
	master, err := keymaterial.NewMasterKey(rawMaster)
	if err != nil {
		return err
	}

	return s.save(cfg, master)
}

// RotateMaster re-wraps the existing Config from oldPhrase under newPhrase.
// The dataKey field is copied verbatim; stored objects remain decryptable.
func (s *Store) RotateMaster(oldPhrase, newPhrase []string) error {
	cfg, _, err := s.Load(oldPhrase)
	if err != nil {
		return err
	}
	return s.Save(cfg, newPhrase)
}

// -----------------------------------------------------------------------------

func (s *Store) save(cfg *Config, master *keymaterial.MasterKey) error {
	cfg.Version = CurrentVersion

	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: unable to encode config: %w", err)
	}

	blob, err := master.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("config: unable to seal config: %w", err)
	}

	if err := ioatomic.WriteFile(s.configPath(), bytes.NewReader(blob)); err != nil {
		return fmt.Errorf("config: unable to atomically write config: %w", err)
	}

	if err := os.Chmod(s.configPath(), fileMode); err != nil {
		return fmt.Errorf("config: unable to set config file mode: %w", err)
	}

	return nil
}

func (s *Store) openExisting(master *keymaterial.MasterKey) (*Config, *keymaterial.DataKey, error) {
	blob, err := os.ReadFile(s.configPath())
	if err != nil {
		return nil, nil, fmt.Errorf("config: unable to read config file: %w", err)
	}

	plaintext, err := master.Open(blob)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	var cfg Config
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil, nil, fmt.Errorf("config: unable to decode config: %w", err)
	}

	if cfg.Version > CurrentVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cfg.Version)
	}

	// Hand the enclave a copy: cfg.DataKey must survive untouched so a
	// caller can still Save(cfg, ...) afterwards (NewDataKey wipes the
	// slice it is given once it is sealed into the enclave).
	dataKey, err := keymaterial.NewDataKey(append([]byte{}, cfg.DataKey...))
	if err != nil {
		return nil, nil, fmt.Errorf("config: stored data key is malformed: %w", err)
	}

	return &cfg, dataKey, nil
}

func (s *Store) initFresh(master *keymaterial.MasterKey) (*Config, *keymaterial.DataKey, error) {
	raw, err := randomness.Bytes(32)
	if err != nil {
		return nil, nil, fmt.Errorf("config: unable to generate data key: %w", err)
	}

	cfg := &Config{
		Version: CurrentVersion,
		DataKey: raw,
		Vaults:  []Vault{},
	}

	if err := s.save(cfg, master); err != nil {
		return nil, nil, err
	}

	dataKey, err := keymaterial.NewDataKey(append([]byte{}, raw...))
	if err != nil {
		return nil, nil, err
	}

	return cfg, dataKey, nil
}

func (s *Store) hasLegacyFiles() bool {
	_, err := os.Stat(s.legacySettingsPath())
	return err == nil
}

// legacySettings mirrors the plaintext $HOME/.cybs3.json shape.
type legacySettings struct {
	Region string `json:"region"`
	Bucket string `json:"bucket"`
}

// legacyVaultsFileV1 mirrors the sealed $HOME/.cybs3.vaults payload.
type legacyVaultsFileV1 struct {
	Version int           `json:"version"`
	Vaults  []legacyVault `json:"vaults"`
}

type legacyVault struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Region    string `json:"region"`
}

// migrate lifts a legacy plaintext-settings + sealed-vaults install into a
// fresh Config. The Data Key for migrated installs is set to
// derive_master_key(mnemonic) itself (not a fresh random key) so objects
// encrypted before the migration remain decryptable.
func (s *Store) migrate(phrase []string, master *keymaterial.MasterKey) (*Config, *keymaterial.DataKey, error) {
	settingsRaw, err := os.ReadFile(s.legacySettingsPath())
	if err != nil {
		return nil, nil, fmt.Errorf("config: unable to read legacy settings: %w", err)
	}

	var legacy legacySettings
	if err := json.Unmarshal(settingsRaw, &legacy); err != nil {
		return nil, nil, fmt.Errorf("config: unable to decode legacy settings: %w", err)
	}

	cfg := &Config{
		Version: CurrentVersion,
		Vaults:  []Vault{},
		Settings: Settings{
			DefaultRegion: legacy.Region,
			DefaultBucket: legacy.Bucket,
		},
	}

	if _, err := os.Stat(s.legacyVaultsPath()); err == nil {
		vaultsBlob, err := os.ReadFile(s.legacyVaultsPath())
		if err != nil {
			return nil, nil, fmt.Errorf("config: unable to read legacy vaults: %w", err)
		}

		legacyMaster, err := mnemonic.DeriveMasterKey(phrase)
		if err != nil {
			return nil, nil, fmt.Errorf("config: unable to derive legacy master key: %w", err)
		}

		vaultsPlain, err := masterOpen(legacyMaster, vaultsBlob)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: legacy vaults file: %w", ErrDecryptionFailed, err)
		}

		var legacyFile legacyVaultsFileV1
		if err := json.Unmarshal(vaultsPlain, &legacyFile); err != nil {
			return nil, nil, fmt.Errorf("config: unable to decode legacy vaults: %w", err)
		}

		for _, v := range legacyFile.Vaults {
			cfg.Vaults = append(cfg.Vaults, Vault{
				Name:      v.Name,
				Endpoint:  v.Endpoint,
				AccessKey: v.AccessKey,
				SecretKey: v.SecretKey,
				Region:    v.Region,
			})
		}
	}

	dataKeyRaw, err := mnemonic.DeriveMasterKey(phrase)
	if err != nil {
		return nil, nil, fmt.Errorf("config: unable to derive migrated data key: %w", err)
	}
	cfg.DataKey = dataKeyRaw

	if err := s.save(cfg, master); err != nil {
		return nil, nil, err
	}

	if err := s.renameToBackup(s.legacySettingsPath()); err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(s.legacyVaultsPath()); err == nil {
		if err := s.renameToBackup(s.legacyVaultsPath()); err != nil {
			return nil, nil, err
		}
	}

	dataKey, err := keymaterial.NewDataKey(append([]byte{}, dataKeyRaw...))
	if err != nil {
		return nil, nil, err
	}

	log.New().Message("migrated legacy configuration into config.enc")

	return cfg, dataKey, nil
}

func (s *Store) renameToBackup(path string) error {
	if err := os.Rename(path, path+backupSuffix); err != nil {
		return fmt.Errorf("config: unable to rename legacy file %q to backup: %w", path, err)
	}
	return nil
}

// masterOpen opens blob under a raw (unwrapped) master key, used only for
// the legacy vaults file whose key never flows through a persistent
// keymaterial.MasterKey instance.
func masterOpen(rawKey, blob []byte) ([]byte, error) {
	master, err := keymaterial.NewMasterKey(append([]byte{}, rawKey...))
	if err != nil {
		return nil, err
	}
	return master.Open(blob)
}
