// Package idcodec converts sequential database identifiers into opaque,
// fixed-width tokens for use in URLs.
//
// A token is the 8-byte big-endian identifier encrypted as a single Blowfish
// block, base64url encoded without its padding character. Every uint64 maps
// to exactly one 11-character token and back.
//
//	codec, err := idcodec.New([]byte(secret))
//	token := codec.Encode(42)      // e.g. "Zq3v0t1Xb2A"
//	id, err := codec.Decode(token) // 42
package idcodec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"golang.org/x/crypto/blowfish"

	"github.com/depreview/depreview/pkg/errors"
)

// TokenLength is the length of every encoded token.
const TokenLength = 11

// keyLength is the number of key bytes taken from the hashed secret.
const keyLength = 16

// Codec encodes and decodes identifiers. It is immutable after New and safe
// for concurrent use.
type Codec struct {
	cipher *blowfish.Cipher
}

// New derives the cipher key from secret. The secret must not be empty.
func New(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "token secret cannot be empty")
	}
	sum := sha256.Sum256(secret)
	c, err := blowfish.NewCipher(sum[:keyLength])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "could not initialize token cipher")
	}
	return &Codec{cipher: c}, nil
}

// Encode returns the token for id.
func (c *Codec) Encode(id uint64) string {
	var plain, block [blowfish.BlockSize]byte
	binary.BigEndian.PutUint64(plain[:], id)
	c.cipher.Encrypt(block[:], plain[:])
	return base64.URLEncoding.EncodeToString(block[:])[:TokenLength]
}

// Decode returns the identifier for token. Tokens of the wrong length, with
// characters outside the base64url alphabet or with a non-canonical final
// character are rejected.
func (c *Codec) Decode(token string) (uint64, error) {
	if len(token) != TokenLength {
		return 0, invalid(token)
	}
	padded := token + "="
	block, err := base64.URLEncoding.DecodeString(padded)
	if err != nil || len(block) != blowfish.BlockSize {
		return 0, invalid(token)
	}
	if base64.URLEncoding.EncodeToString(block) != padded {
		return 0, invalid(token)
	}
	var plain [blowfish.BlockSize]byte
	c.cipher.Decrypt(plain[:], block)
	return binary.BigEndian.Uint64(plain[:]), nil
}

func invalid(token string) error {
	return errors.New(errors.ErrCodeInvalidID, "invalid list id %q", token)
}
