package sealed

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/status-im/promptctl/store"
)

const (
	envelopeVersion = 1
	saltLen         = 16
)

var (
	// ErrWrongPassphrase is returned when a sealed document cannot be opened
	ErrWrongPassphrase = errors.New("sealed document could not be opened: wrong passphrase or corrupted data")
	// ErrCorrupted is returned when the envelope itself is malformed
	ErrCorrupted = errors.New("sealed document is corrupted")
)

// Ensure SealedStore implements store.Store
var _ store.Store = (*SealedStore)(nil)

// envelope is the on-store representation of an encrypted document
type envelope struct {
	Version  int                `json:"v"`
	KDF      string             `json:"kdf"`
	Params   store.Argon2Config `json:"params"`
	Salt     []byte             `json:"salt"`
	Nonce    []byte             `json:"nonce"`
	Ciphered []byte             `json:"data"`
}

// SealedStore encrypts documents with XChaCha20-Poly1305 before handing them
// to the inner store. The key is derived from a passphrase with argon2id and
// a fresh salt per write.
type SealedStore struct {
	inner      store.Store
	passphrase []byte
	params     store.Argon2Config
	logger     store.Logger
}

// Option is a functional option for configuring SealedStore
type Option func(*SealedStore)

// WithLogger sets the logger for SealedStore
func WithLogger(logger store.Logger) Option {
	return func(s *SealedStore) {
		s.logger = logger
	}
}

// New wraps inner with encryption. The passphrase must not be empty.
func New(inner store.Store, cfg *store.SealedConfig, opts ...Option) (*SealedStore, error) {
	cfg.ApplyDefaults()

	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("sealed store requires a passphrase")
	}
	if err := cfg.Argon2.Validate(); err != nil {
		return nil, err
	}

	s := &SealedStore{
		inner:      inner,
		passphrase: []byte(cfg.Passphrase),
		params:     cfg.Argon2,
		logger:     store.NoopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func deriveKey(passphrase, salt []byte, params store.Argon2Config) []byte {
	return argon2.IDKey(passphrase, salt, uint32(params.Time), uint32(params.MemoryKB), uint8(params.Threads), chacha20poly1305.KeySize)
}

// Read opens the document stored under key
func (s *SealedStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	raw, found, err := s.inner.Read(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("failed to parse sealed document %s: %w", key, err)
	}
	if env.Version != envelopeVersion || env.KDF != "argon2id" {
		return nil, false, fmt.Errorf("unsupported sealed document %s: version %d, kdf %q", key, env.Version, env.KDF)
	}
	if err := env.Params.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorrupted, key, err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, env.Salt, env.Params))
	if err != nil {
		return nil, false, fmt.Errorf("failed to initialise cipher: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, false, ErrWrongPassphrase
	}

	plain, err := aead.Open(nil, env.Nonce, env.Ciphered, []byte(key))
	if err != nil {
		s.logger.Warn("Failed to open sealed document", "key", key)
		return nil, false, ErrWrongPassphrase
	}

	return plain, true, nil
}

// Write seals value and stores it under key
func (s *SealedStore) Write(ctx context.Context, key string, value []byte) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, salt, s.params))
	if err != nil {
		return fmt.Errorf("failed to initialise cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	// the key is bound as additional data so documents cannot be swapped between keys
	env := envelope{
		Version:  envelopeVersion,
		KDF:      "argon2id",
		Params:   s.params,
		Salt:     salt,
		Nonce:    nonce,
		Ciphered: aead.Seal(nil, nonce, value, []byte(key)),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode sealed document: %w", err)
	}

	return s.inner.Write(ctx, key, data)
}

// Delete removes the document stored under key
func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
