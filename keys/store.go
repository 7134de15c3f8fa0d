package keys

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps hex-encoded seeds on disk:
//
//	<dir>/<certifier>/root.key
//	<dir>/<certifier>/roles/<role>.key
type KeyStore struct {
	Directory string
}

// Entry lists a certifier and the roles it holds derived keys for.
type Entry struct {
	Name  string
	Roles []string
}

// DefaultDirectory is ~/.mpst/keys.
func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mpst", "keys"), nil
}

// Open returns a KeyStore rooted at dir, or at DefaultDirectory when dir is
// empty. Nothing is created until a key is written.
func Open(dir string) (*KeyStore, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: dir}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

// CheckName accepts [A-Za-z0-9_-]+; it is used for certifier names and roles
// alike since both become path elements.
func CheckName(s string) error {
	if s == "" {
		return errors.New("name cannot be empty")
	}
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %q", c, s)
	}
	return nil
}

// ParseSeedHex decodes a hex seed, tolerating surrounding space and a 0x
// prefix.
func ParseSeedHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(b))
	}
	return b, nil
}

// NewSeed reads a fresh seed from r, or from crypto/rand when r is nil.
func NewSeed(r io.Reader) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

// ReadSeedFile reads a hex seed file as written by the key store.
func ReadSeedFile(path string) ([]byte, error) {
	return readSeed(path)
}

func readSeed(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(b))
}

// InitRoot stores seed as the root key of certifier name and returns its
// public key for alg.
func (ks *KeyStore) InitRoot(name, alg string, seed []byte, overwrite bool) (pub, path string, err error) {
	if err := CheckName(name); err != nil {
		return "", "", err
	}
	path = ks.rootPath(name)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	pub, err = PublicKeyFromSeed(alg, seed)
	if err != nil {
		return "", "", err
	}
	return pub, path, nil
}

// DeriveRole derives and stores the role key of certifier name.
func (ks *KeyStore) DeriveRole(name, role, alg string, overwrite bool) (pub, path string, err error) {
	if err := CheckName(name); err != nil {
		return "", "", err
	}
	root, err := readSeed(ks.rootPath(name))
	if err != nil {
		return "", "", err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return "", "", err
	}
	path = ks.rolePath(name, role)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	pub, err = PublicKeyFromSeed(alg, seed)
	if err != nil {
		return "", "", err
	}
	return pub, path, nil
}

// Seed loads the root seed of name, or its role seed when role is set.
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := CheckName(role); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(name, role))
}

// Signer loads a stored seed and returns a Signer over it.
func (ks *KeyStore) Signer(name, role, alg, hashAlg string) (*Signer, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		return nil, err
	}
	return NewSigner(alg, hashAlg, seed)
}

// List returns every certifier with its derived roles, sorted.
func (ks *KeyStore) List() ([]Entry, error) {
	dirs, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		e := Entry{Name: d.Name()}
		roleFiles, rerr := os.ReadDir(filepath.Join(ks.Directory, d.Name(), "roles"))
		if rerr == nil {
			for _, f := range roleFiles {
				if !f.IsDir() && strings.HasSuffix(f.Name(), ".key") {
					e.Roles = append(e.Roles, strings.TrimSuffix(f.Name(), ".key"))
				}
			}
			sort.Strings(e.Roles)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
