package state

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/dave/stablegob"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// TrieBlob is a serialized state version: the root and every trie
// node reachable from it.
type TrieBlob struct {
	Root ledger.Hash
	Data map[ledger.Hash][]byte
}

// Encode returns the gob encoding of the blob, stable across runs.
func (b *TrieBlob) Encode() []byte {
	var buf bytes.Buffer
	enc := stablegob.NewEncoder(&buf)
	err := enc.Encode(b)
	if err != nil {
		// should not happen
		panic(err)
	}
	return buf.Bytes()
}

// DecodeTrieBlob decodes a blob produced by TrieBlob.Encode.
func DecodeTrieBlob(d []byte) (*TrieBlob, error) {
	var b TrieBlob
	dec := gob.NewDecoder(bytes.NewReader(d))
	err := dec.Decode(&b)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// Export serializes the state version of the root.
func (s *MerkleState) Export(root ledger.Hash) (*TrieBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.open(root)
	if err != nil {
		return nil, err
	}

	blob := &TrieBlob{Root: root, Data: make(map[ledger.Hash][]byte)}
	iter := t.NodeIterator(nil)
	for iter.Next(true) {
		h := iter.Hash()
		if h == (common.Hash{}) {
			// embedded in its parent node
			continue
		}

		d, err := s.diskDB.Get(h[:])
		if err != nil {
			return nil, fmt.Errorf("read trie node %x: %w", h, err)
		}

		blob.Data[ledger.Hash(h)] = d
	}

	if iter.Error() != nil {
		return nil, iter.Error()
	}

	return blob, nil
}

// Import writes the nodes of the blob to the disk database, making its
// root readable.
func (s *MerkleState) Import(b *TrieBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range b.Data {
		err := s.diskDB.Put(k[:], v)
		if err != nil {
			return err
		}
	}

	_, err := trie.New(common.Hash(b.Root), s.db)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrUnknownRoot, b.Root.Hex(), err)
	}

	return nil
}
