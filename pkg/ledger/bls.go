package ledger

import (
	"sync"

	"github.com/dfinity/go-dfinity-crypto/bls"
)

var blsOnce sync.Once

func initBLS() {
	blsOnce.Do(func() {
		err := bls.Init(int(bls.CurveFp254BNb))
		if err != nil {
			panic(err)
		}
	})
}

// BLSSigner signs messages with a BLS secret key.
type BLSSigner struct {
	sk bls.SecretKey
}

// RandBLSSigner generates a new BLS key.
func RandBLSSigner() *BLSSigner {
	initBLS()
	var sk bls.SecretKey
	sk.SetByCSPRNG()
	return &BLSSigner{sk: sk}
}

// NewBLSSigner restores a signer from its little endian secret key.
func NewBLSSigner(b []byte) (*BLSSigner, error) {
	initBLS()
	var sk bls.SecretKey
	err := sk.SetLittleEndian(b)
	if err != nil {
		return nil, err
	}

	return &BLSSigner{sk: sk}, nil
}

func (s *BLSSigner) PublicKey() []byte {
	return s.sk.GetPublicKey().Serialize()
}

// SecretKey returns the serialized secret key.
func (s *BLSSigner) SecretKey() []byte {
	return s.sk.GetLittleEndian()
}

func (s *BLSSigner) Sign(msg []byte) ([]byte, error) {
	return s.sk.Sign(string(msg)).Serialize(), nil
}

type blsVerifier struct{}

func (blsVerifier) Verify(pk, msg, sig []byte) bool {
	if len(sig) == 0 || len(pk) == 0 {
		return false
	}

	var sign bls.Sign
	err := sign.Deserialize(sig)
	if err != nil {
		return false
	}

	var key bls.PublicKey
	err = key.Deserialize(pk)
	if err != nil {
		return false
	}

	return sign.Verify(&key, string(msg))
}
