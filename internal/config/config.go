// Package config loads the tool settings file mpst.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"besedarium.dev/mpst/compliance"
	"besedarium.dev/mpst/keys"
)

// EnvConfigPath overrides the default settings file location.
const EnvConfigPath = "MPST_CONFIG"

// Config is the resolved tool configuration.
type Config struct {
	Mode        compliance.Mode
	LogLevel    zerolog.Level
	LogJSON     bool
	CertifierID string

	// KeyDir is the key store directory. Signer and SignerRole select the
	// default certificate signing key; SignerKeyFile overrides both.
	KeyDir        string
	Signer        string
	SignerRole    string
	SignerKeyFile string
	SignatureAlg  string
	HashAlg       string

	// StorageConfig is a casconfig file. Backend is used when it is empty.
	StorageConfig string
	Backend       string
}

// mpst.toml key mapping.
type fileConfig struct {
	Mode          string `toml:"mode"`
	LogLevel      string `toml:"log_level"`
	LogJSON       bool   `toml:"log_json"`
	CertifierID   string `toml:"certifier_id"`
	KeyDir        string `toml:"key_dir"`
	Signer        string `toml:"signer"`
	SignerRole    string `toml:"signer_role"`
	SignerKeyFile string `toml:"signer_key_file"`
	SignatureAlg  string `toml:"signature_alg"`
	HashAlg       string `toml:"hash_alg"`
	StorageConfig string `toml:"storage_config"`
	Backend       string `toml:"backend"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Mode:         compliance.Permissive,
		LogLevel:     zerolog.WarnLevel,
		CertifierID:  "mpst",
		SignatureAlg: keys.AlgEd25519,
		HashAlg:      "sha256",
		Backend:      "localfs",
	}
}

// DefaultPath returns $MPST_CONFIG or ~/.mpst/mpst.toml.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mpst", "mpst.toml"), nil
}

// Load overlays the file at path onto Default. Relative file paths in the
// file are resolved against its directory.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load mpst config: %w", err)
	}
	if und := meta.Undecoded(); len(und) > 0 {
		return Config{}, fmt.Errorf("load mpst config: unknown key %q", und[0].String())
	}
	base := filepath.Dir(path)

	if meta.IsDefined("mode") {
		m, err := compliance.Parse(raw.Mode)
		if err != nil {
			return Config{}, fmt.Errorf("load mpst config: %w", err)
		}
		cfg.Mode = m
	}
	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.LogLevel)))
		if err != nil {
			return Config{}, fmt.Errorf("load mpst config: log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("log_json") {
		cfg.LogJSON = raw.LogJSON
	}
	if meta.IsDefined("certifier_id") {
		cfg.CertifierID = strings.TrimSpace(raw.CertifierID)
	}
	if meta.IsDefined("key_dir") {
		cfg.KeyDir = resolve(base, raw.KeyDir)
	}
	if meta.IsDefined("signer") {
		if err := keys.CheckName(raw.Signer); err != nil {
			return Config{}, fmt.Errorf("load mpst config: signer: %w", err)
		}
		cfg.Signer = raw.Signer
	}
	if meta.IsDefined("signer_role") {
		cfg.SignerRole = strings.TrimSpace(raw.SignerRole)
	}
	if meta.IsDefined("signer_key_file") {
		cfg.SignerKeyFile = resolve(base, raw.SignerKeyFile)
	}
	if meta.IsDefined("signature_alg") {
		alg := strings.TrimSpace(raw.SignatureAlg)
		if alg != keys.AlgEd25519 && alg != keys.AlgDilithium3 {
			return Config{}, fmt.Errorf("load mpst config: unsupported signature_alg %q", alg)
		}
		cfg.SignatureAlg = alg
	}
	if meta.IsDefined("hash_alg") {
		h := strings.TrimSpace(raw.HashAlg)
		if !supportedHash(h) {
			return Config{}, fmt.Errorf("load mpst config: unsupported hash_alg %q", h)
		}
		cfg.HashAlg = h
	}
	if meta.IsDefined("storage_config") {
		cfg.StorageConfig = resolve(base, raw.StorageConfig)
	}
	if meta.IsDefined("backend") {
		cfg.Backend = strings.TrimSpace(raw.Backend)
	}

	if cfg.SignerRole != "" && cfg.Signer == "" {
		return Config{}, errors.New("load mpst config: signer_role requires signer")
	}
	return cfg, nil
}

// LoadDefault loads DefaultPath, returning Default when the file does not
// exist.
func LoadDefault() (Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// KeyStore opens the configured key store, or the default one.
func (c Config) KeyStore() (*keys.KeyStore, error) {
	return keys.Open(c.KeyDir)
}

// SigningKey returns the configured certificate signer, or nil when no
// signer is configured.
func (c Config) SigningKey() (*keys.Signer, error) {
	switch {
	case c.SignerKeyFile != "":
		seed, err := keys.ReadSeedFile(c.SignerKeyFile)
		if err != nil {
			return nil, fmt.Errorf("signer key file: %w", err)
		}
		return keys.NewSigner(c.SignatureAlg, c.HashAlg, seed)
	case c.Signer != "":
		ks, err := c.KeyStore()
		if err != nil {
			return nil, err
		}
		return ks.Signer(c.Signer, c.SignerRole, c.SignatureAlg, c.HashAlg)
	default:
		return nil, nil
	}
}

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(base, p)
}

func supportedHash(h string) bool {
	for _, a := range keys.HashAlgs {
		if a == h {
			return true
		}
	}
	return false
}
