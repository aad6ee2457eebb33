// Package vault implements the encrypted, at-rest credential store.
//
// Secrets are stored keyed by name, each authenticated-encrypted with a key
// derived from a master password and a per-vault salt via Argon2id. The
// vault file is rewritten atomically on every mutation so a crash mid-write
// never leaves a corrupt file in place of a good one.
package vault

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// magic identifies a radium vault file; version allows future format changes.
var magic = [4]byte{'R', 'A', 'D', 'V'}

const formatVersion uint8 = 1

const (
	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSizeX
)

// Argon2id parameters. Chosen to be memory-hard while keeping vault
// open/close latency acceptable for an interactive CLI.
const (
	kdfTime    = 3
	kdfMemory  = 64 * 1024 // KiB
	kdfThreads = 4
	kdfKeyLen  = 32
)

// Errors returned by vault operations.
var (
	ErrNotFound          = errors.New("vault: secret not found")
	ErrWrongPassword     = errors.New("vault: wrong password or corrupted vault")
	ErrAlreadyExists     = errors.New("vault: secret already exists")
	ErrInvalidVaultFile  = errors.New("vault: invalid vault file")
	ErrUnsupportedFormat = errors.New("vault: unsupported vault format version")
)

// entry is a single encrypted secret record as persisted to disk.
type entry struct {
	Name       string
	Nonce      []byte
	Ciphertext []byte // includes the authentication tag
	CreatedAt  time.Time
}

// Vault is an encrypted, at-rest store of named secrets. All mutating
// operations take the exclusive lock; reads of a single secret also take the
// exclusive lock today since decryption requires the derived key already
// held by the caller in memory — there is no separate shared-read path.
type Vault struct {
	mu   sync.Mutex
	path string
	key  [kdfKeyLen]byte
	salt [saltSize]byte

	entries map[string]entry
}

// Open loads an existing vault file at path, deriving the decryption key
// from password and the salt stored in the file header. If the file does not
// exist, a new empty vault is created (and not yet persisted until the first
// Store call) using a freshly generated salt.
func Open(path, password string) (*Vault, error) {
	v := &Vault{path: path, entries: make(map[string]entry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if _, err := io.ReadFull(rand.Reader, v.salt[:]); err != nil {
			return nil, fmt.Errorf("vault: generate salt: %w", err)
		}
		v.deriveKey(password)
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}

	if err := v.load(data, password); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) deriveKey(password string) {
	derived := argon2.IDKey([]byte(password), v.salt[:], kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
	copy(v.key[:], derived)
}

// load parses the on-disk format:
//
//	magic(4) | version(1) | salt(16) | entry_count(4) | entries...
//
// each entry: name_len(2) name | nonce(24) | ct_len(4) ciphertext
func (v *Vault) load(data []byte, password string) error {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil || gotMagic != magic {
		return ErrInvalidVaultFile
	}
	var version uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return ErrInvalidVaultFile
	}
	if version != formatVersion {
		return ErrUnsupportedFormat
	}
	if _, err := io.ReadFull(r, v.salt[:]); err != nil {
		return ErrInvalidVaultFile
	}
	v.deriveKey(password)

	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return fmt.Errorf("vault: init cipher: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return ErrInvalidVaultFile
	}

	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
			return ErrInvalidVaultFile
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return ErrInvalidVaultFile
		}

		nonce := make([]byte, nonceSize)
		if _, err := io.ReadFull(r, nonce); err != nil {
			return ErrInvalidVaultFile
		}

		var createdUnix int64
		if err := binary.Read(r, binary.BigEndian, &createdUnix); err != nil {
			return ErrInvalidVaultFile
		}

		var ctLen uint32
		if err := binary.Read(r, binary.BigEndian, &ctLen); err != nil {
			return ErrInvalidVaultFile
		}
		ciphertext := make([]byte, ctLen)
		if _, err := io.ReadFull(r, ciphertext); err != nil {
			return ErrInvalidVaultFile
		}

		// Attempt decryption now so a wrong password fails authentically,
		// with no partial reveal, at open time rather than at first Get.
		if _, err := aead.Open(nil, nonce, ciphertext, name); err != nil {
			return ErrWrongPassword
		}

		v.entries[string(name)] = entry{
			Name:       string(name),
			Nonce:      nonce,
			Ciphertext: ciphertext,
			CreatedAt:  time.Unix(createdUnix, 0).UTC(),
		}
	}

	return nil
}

// Store encrypts value and persists it under name, overwriting any existing
// secret of the same name. The write is atomic: a temp file is written and
// renamed over the vault path.
func (v *Vault) Store(name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return fmt.Errorf("vault: init cipher: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("vault: generate nonce: %w", err)
	}

	// Additional authenticated data binds the ciphertext to its name so
	// entries cannot be silently swapped between names on disk.
	ciphertext := aead.Seal(nil, nonce, []byte(value), []byte(name))

	v.entries[name] = entry{
		Name:       name,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		CreatedAt:  time.Now().UTC(),
	}

	return v.persist()
}

// Get decrypts and returns the plaintext value for name. The plaintext
// should be held by the caller only for the duration of the single tool call
// that needs it.
func (v *Vault) Get(name string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[name]
	if !ok {
		return "", ErrNotFound
	}

	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return "", fmt.Errorf("vault: init cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, e.Nonce, e.Ciphertext, []byte(name))
	if err != nil {
		return "", ErrWrongPassword
	}
	return string(plaintext), nil
}

// List returns the names of all stored secrets, sorted.
func (v *Vault) List() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	names := make([]string, 0, len(v.entries))
	for name := range v.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delete removes a secret. It is not an error to delete a name that does not
// exist.
func (v *Vault) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.entries[name]; !ok {
		return nil
	}
	delete(v.entries, name)
	return v.persist()
}

// persist rewrites the entire vault file atomically. Caller must hold mu.
func (v *Vault) persist() error {
	var buf bytes.Buffer
	buf.Write(magic[:])
	binary.Write(&buf, binary.BigEndian, formatVersion)
	buf.Write(v.salt[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(v.entries)))

	names := make([]string, 0, len(v.entries))
	for name := range v.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := v.entries[name]
		binary.Write(&buf, binary.BigEndian, uint16(len(e.Name)))
		buf.WriteString(e.Name)
		buf.Write(e.Nonce)
		binary.Write(&buf, binary.BigEndian, e.CreatedAt.Unix())
		binary.Write(&buf, binary.BigEndian, uint32(len(e.Ciphertext)))
		buf.Write(e.Ciphertext)
	}

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vault: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vault-*.tmp")
	if err != nil {
		return fmt.Errorf("vault: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, v.path); err != nil {
		return fmt.Errorf("vault: rename temp file: %w", err)
	}
	return nil
}
