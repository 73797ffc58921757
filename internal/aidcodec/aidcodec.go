// Package aidcodec anonymizes UIDs into AIDs and trial-decrypts AIDs back,
// the only two directions of the AID codec (spec §4.1). The cipher is a
// 128-bit block cipher in electronic-codebook, single-block mode with no
// padding: the entire message is one block, and freshness comes from the
// 8-byte nonce, not from chaining.
package aidcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"sync"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

// Codec anonymizes and trial-decrypts AIDs, caching the block cipher per key
// to amortize key-schedule setup, which dominates per-attempt cost for
// single-block messages.
type Codec struct {
	mu      sync.Mutex
	ciphers map[model.Key]cipher.Block
}

// New returns a codec with an empty cipher cache.
func New() *Codec {
	return &Codec{ciphers: make(map[model.Key]cipher.Block)}
}

func (c *Codec) blockFor(key model.Key) (cipher.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.ciphers[key]; ok {
		return b, nil
	}
	b, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	c.ciphers[key] = b
	return b, nil
}

// Anonymize produces E_k(uid‖nonce) where nonce is 8 bytes drawn from a
// cryptographically secure RNG. Each call draws a fresh nonce.
func (c *Codec) Anonymize(uid model.UID, key model.Key) (model.AID, error) {
	var plain [model.AIDLen]byte
	copy(plain[:model.UIDLen], uid[:])
	if _, err := rand.Read(plain[model.UIDLen:]); err != nil {
		return model.AID{}, errs.NewCryptoError("anonymize: nonce", err)
	}

	block, err := c.blockFor(key)
	if err != nil {
		return model.AID{}, errs.NewCryptoError("anonymize: key schedule", err)
	}

	var aid model.AID
	block.Encrypt(aid[:], plain[:])
	return aid, nil
}

// TrialDecrypt returns D_k(aid). Never fails for well-formed inputs; a
// cipher setup failure is reported so the caller can fold it into "no
// match" without aborting the batch.
func (c *Codec) TrialDecrypt(aid model.AID, key model.Key) ([model.AIDLen]byte, error) {
	block, err := c.blockFor(key)
	if err != nil {
		return [model.AIDLen]byte{}, err
	}
	var plain [model.AIDLen]byte
	block.Decrypt(plain[:], aid[:])
	return plain, nil
}

// Matches reports whether the first 8 bytes of plaintext equal uid. The
// remaining 8 bytes, the decrypted nonce, are discarded.
func Matches(plaintext [model.AIDLen]byte, uid model.UID) bool {
	for i := 0; i < model.UIDLen; i++ {
		if plaintext[i] != uid[i] {
			return false
		}
	}
	return true
}

// TryMatch trial-decrypts aid with key and reports whether it resolves to uid.
// A cipher error is folded into "no match", matching the trial-decryption
// failure semantics of §4.1/§7: it never aborts the caller's search.
func (c *Codec) TryMatch(aid model.AID, uid model.UID, key model.Key) bool {
	plain, err := c.TrialDecrypt(aid, key)
	if err != nil {
		return false
	}
	return Matches(plain, uid)
}
