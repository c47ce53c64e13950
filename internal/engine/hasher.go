package engine

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "CoverPool:genesis:v1"

// ChainHasher computes the tamper-evident hash chain over emitted
// envelopes: hash[N] = SHA-256(prev_hash || sequence || payload digest).
type ChainHasher struct {
	prevHash [32]byte
}

func NewChainHasher() *ChainHasher {
	return &ChainHasher{
		prevHash: sha256.Sum256([]byte(genesisHashSeed)),
	}
}

// ComputeHash advances the chain and returns the new tip.
func (h *ChainHasher) ComputeHash(sequence int64, digest []byte) [32]byte {
	hasher := sha256.New()

	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(digest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))

	h.prevHash = hash

	return hash
}

// PrevHash returns the current chain tip.
func (h *ChainHasher) PrevHash() [32]byte {
	return h.prevHash
}
