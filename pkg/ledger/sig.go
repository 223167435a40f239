package ledger

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto/secp256k1"
)

// Scheme names a signing backend.
type Scheme string

const (
	Secp256k1 Scheme = "secp256k1"
	BLS       Scheme = "bls"
)

// Signer signs messages with one held private key.
type Signer interface {
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// Verifier checks signatures produced by a Signer of the same scheme.
type Verifier interface {
	Verify(pk, msg, sig []byte) bool
}

// NewVerifier returns the verifier of the scheme.
func NewVerifier(s Scheme) (Verifier, error) {
	switch s {
	case Secp256k1:
		return secp256k1Verifier{}, nil
	case BLS:
		initBLS()
		return blsVerifier{}, nil
	default:
		return nil, fmt.Errorf("unknown signature scheme: %q", s)
	}
}

// NewRandomSigner creates a signer of the scheme with a fresh key.
func NewRandomSigner(s Scheme) (Signer, error) {
	switch s {
	case Secp256k1:
		return RandSecp256k1Signer()
	case BLS:
		return RandBLSSigner(), nil
	default:
		return nil, fmt.Errorf("unknown signature scheme: %q", s)
	}
}

var errInvalidSK = errors.New("invalid secp256k1 secret key")

// Secp256k1Signer signs the SHA3 digest of a message with a
// secp256k1 key.
type Secp256k1Signer struct {
	pk []byte
	sk []byte
}

// RandSecp256k1Signer generates a new secp256k1 key pair.
func RandSecp256k1Signer() (*Secp256k1Signer, error) {
	key, err := ecdsa.GenerateKey(secp256k1.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	pk := elliptic.Marshal(secp256k1.S256(), key.X, key.Y)
	return &Secp256k1Signer{pk: pk, sk: math.PaddedBigBytes(key.D, 32)}, nil
}

// NewSecp256k1Signer restores a signer from its 32 byte secret key.
func NewSecp256k1Signer(sk []byte) (*Secp256k1Signer, error) {
	curve := secp256k1.S256()
	d := new(big.Int).SetBytes(sk)
	if len(sk) != 32 || d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, errInvalidSK
	}

	x, y := curve.ScalarBaseMult(sk)
	pk := elliptic.Marshal(curve, x, y)
	return &Secp256k1Signer{pk: pk, sk: append([]byte(nil), sk...)}, nil
}

func (s *Secp256k1Signer) PublicKey() []byte {
	return s.pk
}

// SecretKey returns the serialized secret key.
func (s *Secp256k1Signer) SecretKey() []byte {
	return s.sk
}

func (s *Secp256k1Signer) Sign(msg []byte) ([]byte, error) {
	in := SHA3(msg)
	return secp256k1.Sign(in[:], s.sk)
}

type secp256k1Verifier struct{}

func (secp256k1Verifier) Verify(pk, msg, sig []byte) bool {
	if len(sig) < 64 || len(pk) == 0 {
		return false
	}

	in := SHA3(msg)
	return secp256k1.VerifySignature(pk, in[:], sig[:64])
}
