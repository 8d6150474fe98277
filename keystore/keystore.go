// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keystore persists the source wallet key across sessions.
//
// Keys are stored as their raw 64 byte ed25519 encoding in a single bucket
// of a bbolt database, keyed by a caller-supplied storage key.  Hop keys are
// never stored.
package keystore

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.etcd.io/bbolt"
)

var (
	// ErrKeyNotFound is returned when no key is stored under a name.
	ErrKeyNotFound = errors.New("key not found")

	// ErrCorruptKey is returned when the stored bytes are not a valid
	// ed25519 private key.
	ErrCorruptKey = errors.New("stored key is corrupt")

	// ErrEmptyName is returned for an empty storage key.
	ErrEmptyName = errors.New("storage key name required")

	keysBucket = []byte("source-keys")
)

// KeyStore loads, saves and clears signing keys by storage key.
type KeyStore interface {
	Load(name string) (solana.PrivateKey, error)
	Save(name string, key solana.PrivateKey) error
	Clear(name string) error
}

// Store is a KeyStore backed by a bbolt database file.
type Store struct {
	db *bbolt.DB
}

// A compile-time assertion to ensure that Store implements KeyStore.
var _ KeyStore = (*Store)(nil)

// Open opens or creates the key database at path.  The call blocks up to
// timeout while another process holds the database.
func Open(path string, timeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open key database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(keysBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the key stored under name.  ErrKeyNotFound is returned when
// there is none.
func (s *Store) Load(name string) (solana.PrivateKey, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	var key solana.PrivateKey
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(keysBucket).Get([]byte(name))
		if v == nil {
			return ErrKeyNotFound
		}

		// Values are only valid for the life of the transaction.
		key = make(solana.PrivateKey, len(v))
		copy(key, v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := checkKey(key); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptKey, name, err)
	}
	return key, nil
}

// Save stores key under name, replacing any existing key.
func (s *Store) Save(name string, key solana.PrivateKey) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := checkKey(key); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(keysBucket).Put([]byte(name), key)
	})
}

// Clear deletes the key stored under name.  Clearing a missing key is not
// an error.
func (s *Store) Clear(name string) error {
	if name == "" {
		return ErrEmptyName
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(keysBucket).Delete([]byte(name))
	})
}

// LoadOrCreate loads the key stored under name, or generates and saves a new
// one when none is stored.  The returned bool reports whether the key was
// created.
func LoadOrCreate(ks KeyStore, name string,
	gen func() (solana.PrivateKey, error)) (solana.PrivateKey, bool, error) {

	key, err := ks.Load(name)
	switch {
	case err == nil:
		log.Debugf("Loaded source key %q", name)
		return key, false, nil

	case !errors.Is(err, ErrKeyNotFound):
		return nil, false, err
	}

	key, err = gen()
	if err != nil {
		return nil, false, fmt.Errorf("generate source key: %w", err)
	}
	if err := ks.Save(name, key); err != nil {
		return nil, false, err
	}

	log.Infof("Created new source key %q (%v)", name, key.PublicKey())
	return key, true, nil
}

// checkKey verifies that key is a well formed ed25519 private key whose
// public half matches its seed.
func checkKey(key solana.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("key length %d, want %d", len(key),
			ed25519.PrivateKeySize)
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived, key) {
		return errors.New("public key does not match seed")
	}
	return nil
}
