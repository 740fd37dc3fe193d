package signing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blockberries/cookiejar"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	privateKeySuffix = ".priv"
	publicKeySuffix  = ".pub"
	fsModeWrite      = 0o600
	fsModeDir        = 0o700
)

// DefaultKeyDir returns ~/.sawtooth/keys, where the command line tools
// look for keys by name.
func DefaultKeyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sawtooth", "keys"), nil
}

// KeyFile returns the private key file path for the key name in dir.
func KeyFile(dir, name string) string {
	return filepath.Join(dir, name+privateKeySuffix)
}

// LoadPrivateKeyFile reads a private key file holding one hex line.
// Any failure is reported as a *cookiejar.KeyLoadError so callers abort
// before signing anything.
func LoadPrivateKeyFile(path string) (*secp256k1.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &cookiejar.KeyLoadError{Path: path, Err: err}
	}
	priv, err := ParsePrivateKeyHex(string(b))
	if err != nil {
		return nil, &cookiejar.KeyLoadError{Path: path, Err: err}
	}
	return priv, nil
}

// LoadSigner returns a Signer for the key stored at path.
func LoadSigner(path string) (*Signer, error) {
	priv, err := LoadPrivateKeyFile(path)
	if err != nil {
		return nil, err
	}
	return NewSigner(priv), nil
}

// WriteKeyFiles persists priv as <dir>/<name>.priv and its public key as
// <dir>/<name>.pub. Existing files are left untouched unless force is
// set. It returns the private key path.
func WriteKeyFiles(dir, name string, priv *secp256k1.PrivateKey, force bool) (string, error) {
	if err := os.MkdirAll(dir, fsModeDir); err != nil {
		return "", fmt.Errorf("create key directory %s: %w", dir, err)
	}
	privPath := KeyFile(dir, name)
	pubPath := filepath.Join(dir, name+publicKeySuffix)
	if !force {
		for _, p := range []string{privPath, pubPath} {
			if _, err := os.Stat(p); err == nil {
				return "", fmt.Errorf("key file %s already exists", p)
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
		}
	}
	if err := os.WriteFile(privPath, []byte(PrivateKeyHex(priv)+"\n"), fsModeWrite); err != nil {
		return "", fmt.Errorf("write private key: %w", err)
	}
	pub := NewSigner(priv).PublicKeyHex()
	if err := os.WriteFile(pubPath, []byte(pub+"\n"), fsModeWrite); err != nil {
		return "", fmt.Errorf("write public key: %w", err)
	}
	return privPath, nil
}
