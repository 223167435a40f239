package ledger

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	hashBytes = 32
)

// Hash is the hash of a piece of data. State roots are hashes too.
type Hash [hashBytes]byte

// ZeroHash is the hash with all bytes set to zero.
var ZeroHash = Hash{}

// SHA3 returns the SHA3-256 hash of the concatenated inputs.
func SHA3(b ...[]byte) Hash {
	d := sha3.New256()
	for _, e := range b {
		_, err := d.Write(e)
		if err != nil {
			// should not happen
			panic(err)
		}
	}
	h := d.Sum(nil)
	var hash Hash
	copy(hash[:], h)
	return hash
}

// SHA512 returns the SHA-512 digest of b.
func SHA512(b []byte) []byte {
	sum := sha512.Sum512(b)
	return sum[:]
}

// HashFromHex parses a hex encoded hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}

	if len(b) != hashBytes {
		return h, fmt.Errorf("hash length %d, want %d", len(b), hashBytes)
	}

	copy(h[:], b)
	return h, nil
}

func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}
