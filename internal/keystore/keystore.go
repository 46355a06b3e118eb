// Package keystore keeps a long-lived signing identity encrypted at rest.
//
// The seed is sealed with XChaCha20-Poly1305 under a key derived from a
// passphrase with argon2id. The DID is stored in the clear so a keystore can
// be identified without unlocking it.
package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/identity"
)

const (
	formatVersion = 1
	kdfName       = "argon2id"
	cipherName    = "xchacha20-poly1305"
	saltSize      = 16

	maxTime      = 16
	maxMemoryKiB = 4 * 1024 * 1024

	// FileMode is the permission keystore files are written with.
	FileMode fs.FileMode = 0o600
)

// Params tune the argon2id derivation.
type Params struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

// DefaultParams follow the argon2id recommendation for interactive use.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4}

// Validate bounds the cost so a crafted keystore cannot make argon2 panic
// (zero time or threads) or allocate more than 4 GiB.
func (p Params) Validate() error {
	switch {
	case p.Time == 0 || p.Time > maxTime:
		return fmt.Errorf("argon2 time must be between 1 and %d, got %d", maxTime, p.Time)
	case p.Threads == 0:
		return errors.New("argon2 threads must be at least 1")
	case p.Memory < 8*uint32(p.Threads) || p.Memory > maxMemoryKiB:
		return fmt.Errorf("argon2 memory must be between %d and %d KiB, got %d", 8*uint32(p.Threads), maxMemoryKiB, p.Memory)
	}
	return nil
}

type file struct {
	Version    int    `json:"version"`
	DID        string `json:"did"`
	KDF        string `json:"kdf"`
	Params     Params `json:"params"`
	Cipher     string `json:"cipher"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Option configures Save.
type Option func(*Params)

// WithParams overrides the key derivation cost.
func WithParams(p Params) Option {
	return func(dst *Params) { *dst = p }
}

// Save encrypts id with passphrase and writes it to path with FileMode.
// Parent directories are created.
func Save(path string, id *identity.Identity, passphrase string, opts ...Option) error {
	if id == nil {
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	if passphrase == "" {
		return dErrors.New(dErrors.CodeValidation, "passphrase is required")
	}
	params := DefaultParams
	for _, opt := range opts {
		opt(&params)
	}
	if err := params.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid key derivation params")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("could not generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt, params))
	if err != nil {
		return fmt.Errorf("could not init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("could not generate nonce: %w", err)
	}

	f := file{
		Version: formatVersion,
		DID:     id.DID(),
		KDF:     kdfName,
		Params:  params,
		Cipher:  cipherName,
		Salt:    salt,
		Nonce:   nonce,
	}
	f.Ciphertext = aead.Seal(nil, nonce, id.Seed(), []byte(f.DID))

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode keystore: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("could not create keystore directory: %w", err)
	}
	if err := os.WriteFile(path, data, FileMode); err != nil {
		return fmt.Errorf("could not write keystore: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, FileMode)
}

// Load decrypts the identity stored at path. A wrong passphrase or a
// modified file is CodeUnauthorized; a missing file is CodeNotFound.
func Load(path, passphrase string) (*identity.Identity, error) {
	f, err := read(path)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, f.Salt, f.Params))
	if err != nil {
		return nil, fmt.Errorf("could not init cipher: %w", err)
	}
	if len(f.Nonce) != aead.NonceSize() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "keystore nonce is malformed")
	}
	seed, err := aead.Open(nil, f.Nonce, f.Ciphertext, []byte(f.DID))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "wrong passphrase or corrupted keystore")
	}
	id, err := identity.FromSeed(seed)
	if err != nil {
		return nil, err
	}
	if id.DID() != f.DID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "keystore identity does not match its did")
	}
	return id, nil
}

// DID reports which identity a keystore holds without decrypting it.
func DID(path string) (string, error) {
	f, err := read(path)
	if err != nil {
		return "", err
	}
	return f.DID, nil
}

// Exists reports whether a keystore file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func read(path string) (*file, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no keystore at %s", path)
		}
		return nil, fmt.Errorf("could not read keystore: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "keystore is not valid JSON")
	}
	if f.Version != formatVersion || f.KDF != kdfName || f.Cipher != cipherName {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported keystore format v%d %s/%s", f.Version, f.KDF, f.Cipher)
	}
	if err := f.Params.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "keystore params out of range")
	}
	if len(f.Salt) != saltSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "keystore salt is malformed")
	}
	return &f, nil
}

func deriveKey(passphrase string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.Memory, p.Threads, chacha20poly1305.KeySize)
}
