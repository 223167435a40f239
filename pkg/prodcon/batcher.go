package prodcon

import (
	"crypto/rand"

	"github.com/helinwang/prodcon/pkg/ledger"
)

const nonceBytes = 32

// NonceSource returns a fresh transaction nonce.
type NonceSource func() ([]byte, error)

// RandNonce returns 32 random bytes.
func RandNonce() ([]byte, error) {
	b := make([]byte, nonceBytes)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// Batcher signs single transaction batches with one signer.
type Batcher struct {
	signer ledger.Signer
	nonce  NonceSource
}

// NewBatcher creates a batcher signing with s.
func NewBatcher(s ledger.Signer) *Batcher {
	return &Batcher{signer: s, nonce: RandNonce}
}

// WithNonceSource replaces the nonce source.
func (b *Batcher) WithNonceSource(n NonceSource) *Batcher {
	b.nonce = n
	return b
}

// PublicKey returns the public key of the signer.
func (b *Batcher) PublicKey() []byte {
	return b.signer.PublicKey()
}

// BuildTransaction builds the transaction of the payload, batched and
// signed by the batcher's signer.
func (b *Batcher) BuildTransaction(payload []byte, inputs, outputs [][]byte) (*ledger.TransactionPair, error) {
	nonce, err := b.nonce()
	if err != nil {
		return nil, &Error{Kind: ErrSigning, Op: "generate nonce", Err: err}
	}

	txn, err := ledger.NewTransactionBuilder().
		WithBatcherPublicKey(b.signer.PublicKey()).
		WithFamilyName(FamilyName).
		WithFamilyVersion(FamilyVersion).
		WithInputs(inputs).
		WithOutputs(outputs).
		WithNonce(nonce).
		WithPayloadHashMethod(ledger.HashMethodSHA512).
		WithPayload(payload).
		Build(b.signer)
	if err != nil {
		return nil, &Error{Kind: ErrSigning, Op: "build transaction", Err: err}
	}

	return txn, nil
}

// BuildBatch wraps the transaction into a signed batch.
func (b *Batcher) BuildBatch(txn *ledger.TransactionPair) (*ledger.BatchPair, error) {
	batch, err := ledger.NewBatchBuilder().
		WithTransactions([]*ledger.Transaction{txn.Transaction}).
		Build(b.signer)
	if err != nil {
		return nil, &Error{Kind: ErrSigning, Op: "build batch", Err: err}
	}

	return batch, nil
}

// Submit builds the transaction of the payload and its batch.
func (b *Batcher) Submit(payload []byte, inputs, outputs [][]byte) (*ledger.BatchPair, error) {
	txn, err := b.BuildTransaction(payload, inputs, outputs)
	if err != nil {
		return nil, err
	}

	return b.BuildBatch(txn)
}
