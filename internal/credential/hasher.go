// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package credential turns plaintext passwords into one-way digests and checks
// candidate passwords against them.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Default argon2id parameters (OWASP recommendation).
const (
	DefaultWorkFactor = 1         // iterations
	DefaultMemoryKiB  = 64 * 1024 // 64 MiB
	DefaultThreads    = 4

	saltLen = 16
	keyLen  = 32
)

// Bounds on accepted parameters. Verify refuses digests outside them so a
// crafted digest cannot make verification arbitrarily expensive.
const (
	MinWorkFactor = 1
	MaxWorkFactor = 20
	maxMemoryKiB  = 1024 * 1024 // 1 GiB
	minSaltLen    = 8
	minKeyLen     = 16
	maxKeyLen     = 128
)

const algorithm = "argon2id"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("CREDENTIAL_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher produces and checks password digests.
type PasswordHasher interface {
	// Hash produces a salted digest of plaintext. Two calls with the same
	// input return different digests.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches digest. Malformed digests
	// never match.
	Verify(plaintext, digest string) bool

	// NeedsUpgrade reports whether digest was produced with weaker settings
	// than the hasher currently uses.
	NeedsUpgrade(digest string) bool
}

// Argon2idHasher implements PasswordHasher with argon2id and PHC-formatted digests:
//
//	$argon2id$v=19$m=<KiB>,t=<iterations>,p=<threads>$<salt>$<hash>
type Argon2idHasher struct {
	time    uint32
	memory  uint32
	threads uint8
	rand    io.Reader
}

// Option configures an Argon2idHasher.
type Option func(*Argon2idHasher)

// WithWorkFactor sets the argon2 time cost. Higher values are slower.
func WithWorkFactor(n int) Option {
	return func(h *Argon2idHasher) {
		h.time = clampUint32(n)
	}
}

// WithMemoryKiB sets the argon2 memory cost in KiB.
func WithMemoryKiB(kib int) Option {
	return func(h *Argon2idHasher) {
		h.memory = clampUint32(kib)
	}
}

// WithThreads sets the argon2 parallelism.
func WithThreads(n int) Option {
	return func(h *Argon2idHasher) {
		if n < 0 || n > 255 {
			n = 0
		}
		h.threads = uint8(n) //nolint:gosec // range checked above
	}
}

// WithRand overrides the salt source.
func WithRand(r io.Reader) Option {
	return func(h *Argon2idHasher) {
		h.rand = r
	}
}

// NewArgon2idHasher creates a hasher. Parameters outside the accepted bounds
// are rejected with CREDENTIAL_INVALID_PARAMS.
func NewArgon2idHasher(opts ...Option) (*Argon2idHasher, error) {
	h := &Argon2idHasher{
		time:    DefaultWorkFactor,
		memory:  DefaultMemoryKiB,
		threads: DefaultThreads,
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.time < MinWorkFactor || h.time > MaxWorkFactor {
		return nil, oops.Code("CREDENTIAL_INVALID_PARAMS").
			With("work_factor", h.time).
			Errorf("work factor must be between %d and %d", MinWorkFactor, MaxWorkFactor)
	}
	if h.threads == 0 {
		return nil, oops.Code("CREDENTIAL_INVALID_PARAMS").
			Errorf("threads must be between 1 and 255")
	}
	// argon2 needs at least 8 KiB per lane.
	if h.memory < 8*uint32(h.threads) || h.memory > maxMemoryKiB {
		return nil, oops.Code("CREDENTIAL_INVALID_PARAMS").
			With("memory_kib", h.memory).
			With("threads", h.threads).
			Errorf("memory must be between %d and %d KiB", 8*uint32(h.threads), maxMemoryKiB)
	}
	return h, nil
}

// WorkFactor returns the configured time cost.
func (h *Argon2idHasher) WorkFactor() int { return int(h.time) }

// Hash produces an argon2id digest of plaintext with a fresh random salt.
func (h *Argon2idHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", oops.Code("CREDENTIAL_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.time, h.memory, h.threads, keyLen)

	return params{
		version: argon2.Version,
		memory:  h.memory,
		time:    h.time,
		threads: h.threads,
		salt:    salt,
		key:     key,
	}.encode(), nil
}

// Verify recomputes the digest with the parameters embedded in it and compares
// in constant time.
func (h *Argon2idHasher) Verify(plaintext, digest string) bool {
	p, err := decode(digest)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.threads, uint32(len(p.key))) //nolint:gosec // key length bounded by decode
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

// NeedsUpgrade returns true if digest is not a well-formed argon2id digest or
// used a lower time or memory cost than h.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	p, err := decode(digest)
	if err != nil {
		return true
	}
	return p.time < h.time || p.memory < h.memory
}

type params struct {
	version int
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p params) encode() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm,
		p.version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func decode(digest string) (params, error) {
	var p params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("invalid digest format")
	}
	if parts[1] != algorithm {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("unsupported algorithm: %s", parts[1])
	}

	if _, err := fmt.Sscanf(parts[2], "v=%d", &p.version); err != nil {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Wrap(err)
	}
	if p.version != argon2.Version {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("unsupported version: %d", p.version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Wrap(err)
	}
	if time < MinWorkFactor || time > MaxWorkFactor {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("time cost %d out of range", time)
	}
	if threads < 1 || threads > 255 {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("threads %d out of range", threads)
	}
	if memory < 8*threads || memory > maxMemoryKiB {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("memory cost %d out of range", memory)
	}
	p.memory, p.time, p.threads = memory, time, uint8(threads) //nolint:gosec // range checked above

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Wrap(err)
	}
	if len(p.salt) < minSaltLen {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("salt too short")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Wrap(err)
	}
	if len(p.key) < minKeyLen || len(p.key) > maxKeyLen {
		return p, oops.Code("CREDENTIAL_INVALID_DIGEST").Errorf("invalid key length: %d", len(p.key))
	}
	return p, nil
}

func clampUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)>>1) {
		return ^uint32(0) >> 1
	}
	return uint32(n) //nolint:gosec // range checked above
}

var _ PasswordHasher = (*Argon2idHasher)(nil)
