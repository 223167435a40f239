package ledger

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// HashMethod is the method used to hash a transaction payload.
type HashMethod uint8

const (
	HashMethodUnset HashMethod = iota
	HashMethodSHA512
)

var (
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrPayloadHash       = errors.New("payload hash mismatch")
	ErrBatcherMismatch   = errors.New("transaction batcher key does not match batch signer")
	ErrTransactionIDs    = errors.New("batch transaction ids do not match transactions")
	ErrUnknownHashMethod = errors.New("unknown payload hash method")
)

// TransactionHeader is the signed part of a transaction.
type TransactionHeader struct {
	BatcherPublicKey  []byte
	FamilyName        string
	FamilyVersion     string
	Inputs            [][]byte
	Outputs           [][]byte
	Nonce             []byte
	PayloadHashMethod HashMethod
	PayloadHash       []byte
	SignerPublicKey   []byte
}

// Encode returns the RLP encoding of the header, which is the message
// being signed.
func (h *TransactionHeader) Encode() []byte {
	b, err := rlp.EncodeToBytes(h)
	if err != nil {
		// should not happen
		panic(err)
	}

	return b
}

// Transaction is a signed, family scoped unit of work.
type Transaction struct {
	Header          []byte
	HeaderSignature []byte
	Payload         []byte
}

// ID returns the transaction id, the hex encoded header signature.
func (t *Transaction) ID() string {
	return hex.EncodeToString(t.HeaderSignature)
}

// DecodeHeader decodes the header bytes.
func (t *Transaction) DecodeHeader() (*TransactionHeader, error) {
	var h TransactionHeader
	err := rlp.DecodeBytes(t.Header, &h)
	if err != nil {
		return nil, err
	}

	return &h, nil
}

// TransactionPair is a transaction with its decoded header.
type TransactionPair struct {
	Transaction *Transaction
	Header      *TransactionHeader
}

// TransactionBuilder assembles and signs a transaction.
type TransactionBuilder struct {
	h       TransactionHeader
	payload []byte
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{}
}

func (b *TransactionBuilder) WithBatcherPublicKey(pk []byte) *TransactionBuilder {
	b.h.BatcherPublicKey = pk
	return b
}

func (b *TransactionBuilder) WithFamilyName(name string) *TransactionBuilder {
	b.h.FamilyName = name
	return b
}

func (b *TransactionBuilder) WithFamilyVersion(version string) *TransactionBuilder {
	b.h.FamilyVersion = version
	return b
}

func (b *TransactionBuilder) WithInputs(inputs [][]byte) *TransactionBuilder {
	b.h.Inputs = inputs
	return b
}

func (b *TransactionBuilder) WithOutputs(outputs [][]byte) *TransactionBuilder {
	b.h.Outputs = outputs
	return b
}

func (b *TransactionBuilder) WithNonce(nonce []byte) *TransactionBuilder {
	b.h.Nonce = nonce
	return b
}

func (b *TransactionBuilder) WithPayloadHashMethod(m HashMethod) *TransactionBuilder {
	b.h.PayloadHashMethod = m
	return b
}

func (b *TransactionBuilder) WithPayload(payload []byte) *TransactionBuilder {
	b.payload = payload
	return b
}

// Build signs the header with s and returns the transaction.
func (b *TransactionBuilder) Build(s Signer) (*TransactionPair, error) {
	h := b.h
	switch {
	case len(h.BatcherPublicKey) == 0:
		return nil, fmt.Errorf("%w: batcher public key", ErrMissingField)
	case h.FamilyName == "":
		return nil, fmt.Errorf("%w: family name", ErrMissingField)
	case h.FamilyVersion == "":
		return nil, fmt.Errorf("%w: family version", ErrMissingField)
	case len(h.Nonce) == 0:
		return nil, fmt.Errorf("%w: nonce", ErrMissingField)
	case b.payload == nil:
		return nil, fmt.Errorf("%w: payload", ErrMissingField)
	}

	hash, err := payloadHash(h.PayloadHashMethod, b.payload)
	if err != nil {
		return nil, err
	}

	h.PayloadHash = hash
	h.SignerPublicKey = s.PublicKey()
	header := h.Encode()
	sig, err := s.Sign(header)
	if err != nil {
		return nil, fmt.Errorf("sign transaction header: %w", err)
	}

	txn := &Transaction{
		Header:          header,
		HeaderSignature: sig,
		Payload:         b.payload,
	}
	return &TransactionPair{Transaction: txn, Header: &h}, nil
}

func payloadHash(m HashMethod, payload []byte) ([]byte, error) {
	switch m {
	case HashMethodSHA512:
		return SHA512(payload), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHashMethod, m)
	}
}

// VerifyTransaction checks the header signature and the payload hash
// of t, and returns the decoded header.
func VerifyTransaction(v Verifier, t *Transaction) (*TransactionHeader, error) {
	h, err := t.DecodeHeader()
	if err != nil {
		return nil, fmt.Errorf("decode transaction header: %w", err)
	}

	if !v.Verify(h.SignerPublicKey, t.Header, t.HeaderSignature) {
		return nil, fmt.Errorf("transaction %s: %w", t.ID(), ErrInvalidSignature)
	}

	hash, err := payloadHash(h.PayloadHashMethod, t.Payload)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(hash, h.PayloadHash) {
		return nil, fmt.Errorf("transaction %s: %w", t.ID(), ErrPayloadHash)
	}

	return h, nil
}

// BatchHeader is the signed part of a batch.
type BatchHeader struct {
	SignerPublicKey []byte
	TransactionIDs  [][]byte
}

// Encode returns the RLP encoding of the header.
func (h *BatchHeader) Encode() []byte {
	b, err := rlp.EncodeToBytes(h)
	if err != nil {
		// should not happen
		panic(err)
	}

	return b
}

// Batch is a signed envelope of transactions, the unit submitted for
// execution.
type Batch struct {
	Header          []byte
	HeaderSignature []byte
	Transactions    []*Transaction
}

// ID returns the batch id, the hex encoded header signature.
func (b *Batch) ID() string {
	return hex.EncodeToString(b.HeaderSignature)
}

// Encode returns the RLP encoding of the batch.
func (b *Batch) Encode() []byte {
	d, err := rlp.EncodeToBytes(b)
	if err != nil {
		// should not happen
		panic(err)
	}

	return d
}

// DecodeHeader decodes the header bytes.
func (b *Batch) DecodeHeader() (*BatchHeader, error) {
	var h BatchHeader
	err := rlp.DecodeBytes(b.Header, &h)
	if err != nil {
		return nil, err
	}

	return &h, nil
}

// BatchPair is a batch with its decoded header.
type BatchPair struct {
	Batch  *Batch
	Header *BatchHeader
}

// BatchBuilder assembles and signs a batch.
type BatchBuilder struct {
	txns []*Transaction
}

func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{}
}

func (b *BatchBuilder) WithTransactions(txns []*Transaction) *BatchBuilder {
	b.txns = txns
	return b
}

// Build signs the batch header with s and returns the batch.
func (b *BatchBuilder) Build(s Signer) (*BatchPair, error) {
	if len(b.txns) == 0 {
		return nil, fmt.Errorf("%w: transactions", ErrMissingField)
	}

	h := BatchHeader{SignerPublicKey: s.PublicKey()}
	for _, t := range b.txns {
		h.TransactionIDs = append(h.TransactionIDs, t.HeaderSignature)
	}

	header := h.Encode()
	sig, err := s.Sign(header)
	if err != nil {
		return nil, fmt.Errorf("sign batch header: %w", err)
	}

	batch := &Batch{
		Header:          header,
		HeaderSignature: sig,
		Transactions:    b.txns,
	}
	return &BatchPair{Batch: batch, Header: &h}, nil
}

// VerifyBatch checks the batch signature, that the header lists the
// batch's transactions, and that every transaction names the batch
// signer as its batcher.
func VerifyBatch(v Verifier, b *Batch) (*BatchHeader, error) {
	h, err := b.DecodeHeader()
	if err != nil {
		return nil, fmt.Errorf("decode batch header: %w", err)
	}

	if !v.Verify(h.SignerPublicKey, b.Header, b.HeaderSignature) {
		return nil, fmt.Errorf("batch %s: %w", b.ID(), ErrInvalidSignature)
	}

	if len(h.TransactionIDs) != len(b.Transactions) {
		return nil, ErrTransactionIDs
	}

	for i, t := range b.Transactions {
		if !bytes.Equal(h.TransactionIDs[i], t.HeaderSignature) {
			return nil, ErrTransactionIDs
		}

		th, err := t.DecodeHeader()
		if err != nil {
			return nil, fmt.Errorf("decode transaction header: %w", err)
		}

		if !bytes.Equal(th.BatcherPublicKey, h.SignerPublicKey) {
			return nil, fmt.Errorf("transaction %s: %w", t.ID(), ErrBatcherMismatch)
		}
	}

	return h, nil
}
