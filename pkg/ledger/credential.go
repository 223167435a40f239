package ledger

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io/ioutil"

	"github.com/dave/stablegob"
)

// Credential is the serialized signing identity of a process.
type Credential struct {
	Scheme Scheme
	SK     []byte
}

// NewCredential generates a credential with a fresh key.
func NewCredential(s Scheme) (Credential, error) {
	signer, err := NewRandomSigner(s)
	if err != nil {
		return Credential{}, err
	}

	return CredentialOf(signer)
}

// CredentialOf returns the credential of the signer.
func CredentialOf(s Signer) (Credential, error) {
	switch v := s.(type) {
	case *Secp256k1Signer:
		return Credential{Scheme: Secp256k1, SK: v.SecretKey()}, nil
	case *BLSSigner:
		return Credential{Scheme: BLS, SK: v.SecretKey()}, nil
	default:
		return Credential{}, fmt.Errorf("signer %T can not be serialized", s)
	}
}

// Signer restores the signer of the credential.
func (c Credential) Signer() (Signer, error) {
	switch c.Scheme {
	case Secp256k1:
		return NewSecp256k1Signer(c.SK)
	case BLS:
		return NewBLSSigner(c.SK)
	default:
		return nil, fmt.Errorf("unknown signature scheme: %q", c.Scheme)
	}
}

// Encode returns the gob encoding of the credential, stable across
// runs.
func (c Credential) Encode() []byte {
	var buf bytes.Buffer
	enc := stablegob.NewEncoder(&buf)
	err := enc.Encode(c)
	if err != nil {
		// should not happen
		panic(err)
	}
	return buf.Bytes()
}

// SaveCredential writes the credential to path.
func SaveCredential(path string, c Credential) error {
	return ioutil.WriteFile(path, c.Encode(), 0600)
}

// LoadCredential reads the credential saved at path.
func LoadCredential(path string) (Credential, error) {
	var c Credential
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return c, err
	}

	dec := gob.NewDecoder(bytes.NewReader(b))
	err = dec.Decode(&c)
	if err != nil {
		return c, fmt.Errorf("decode credential %s: %w", path, err)
	}

	return c, nil
}
