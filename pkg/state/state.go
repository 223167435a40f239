package state

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/trie"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// ErrUnknownRoot is returned when a state root is not in the database.
var ErrUnknownRoot = errors.New("unknown state root")

var headKey = []byte("prodcon-head")

const (
	ldbCache   = 16
	ldbHandles = 16
)

// MerkleState is a versioned key-value store. Every version is a
// patricia trie addressed by its root hash, versions share the nodes
// they have in common and old versions stay readable.
type MerkleState struct {
	diskDB ethdb.Database
	db     *trie.Database

	mu    sync.Mutex
	tries *lru.Cache
}

// NewMerkleState creates the state store on top of diskDB, keeping
// up to cacheSize opened tries in memory.
func NewMerkleState(diskDB ethdb.Database, cacheSize int) (*MerkleState, error) {
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	return &MerkleState{
		diskDB: diskDB,
		db:     trie.NewDatabase(diskDB),
		tries:  c,
	}, nil
}

// Open opens the state store kept in the LevelDB directory dir, or
// an in-memory store if dir is empty.
func Open(dir string, cacheSize int) (*MerkleState, error) {
	if dir == "" {
		return NewMemState(cacheSize)
	}

	db, err := ethdb.NewLDBDatabase(dir, ldbCache, ldbHandles)
	if err != nil {
		return nil, fmt.Errorf("open state database %s: %w", dir, err)
	}

	s, err := NewMerkleState(db, cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewMemState creates an in-memory state store.
func NewMemState(cacheSize int) (*MerkleState, error) {
	return NewMerkleState(ethdb.NewMemDatabase(), cacheSize)
}

// EmptyRoot returns the root of the state without any key.
func (s *MerkleState) EmptyRoot() ledger.Hash {
	t, err := trie.New(common.Hash{}, s.db)
	if err != nil {
		// should not happen
		panic(err)
	}

	return ledger.Hash(t.Hash())
}

// Head returns the root of the last commit, or the empty root if
// nothing has been committed to the disk database.
func (s *MerkleState) Head() ledger.Hash {
	b, err := s.diskDB.Get(headKey)
	if err != nil || len(b) != len(ledger.Hash{}) {
		return s.EmptyRoot()
	}

	var h ledger.Hash
	copy(h[:], b)
	return h
}

// open returns the trie of the root. The returned trie is shared with
// the cache and must not be modified.
func (s *MerkleState) open(root ledger.Hash) (*trie.Trie, error) {
	if v, ok := s.tries.Get(root); ok {
		return v.(*trie.Trie), nil
	}

	t, err := trie.New(common.Hash(root), s.db)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnknownRoot, root.Hex(), err)
	}

	s.tries.Add(root, t)
	return t, nil
}

// Has returns true if the root is a known state version.
func (s *MerkleState) Has(root ledger.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.open(root)
	return err == nil
}

// Get returns the values of keys at the root. Missing keys are absent
// from the returned map.
func (s *MerkleState) Get(root ledger.Hash, keys [][]byte) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.open(root)
	if err != nil {
		return nil, err
	}

	r := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := t.TryGet(k)
		if err != nil {
			return nil, fmt.Errorf("get key %x: %w", k, err)
		}

		if len(v) > 0 {
			r[string(k)] = v
		}
	}

	return r, nil
}

func (s *MerkleState) apply(root ledger.Hash, changes []ledger.StateChange) (*trie.Trie, error) {
	base, err := s.open(root)
	if err != nil {
		return nil, err
	}

	t := *base
	for _, c := range changes {
		switch c.Type {
		case ledger.Set:
			if len(c.Value) == 0 {
				return nil, fmt.Errorf("set key %x: empty value", c.Key)
			}

			err = t.TryUpdate(c.Key, c.Value)
		case ledger.Delete:
			err = t.TryDelete(c.Key)
		default:
			err = fmt.Errorf("unknown state change type: %v", c.Type)
		}

		if err != nil {
			return nil, err
		}
	}

	return &t, nil
}

// Commit applies the changes on top of the root in order, writes the
// new version to the disk database and returns its root. The given
// root stays readable.
func (s *MerkleState) Commit(root ledger.Hash, changes []ledger.StateChange) (ledger.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.apply(root, changes)
	if err != nil {
		return ledger.Hash{}, err
	}

	newRoot, err := t.Commit(nil)
	if err != nil {
		return ledger.Hash{}, err
	}

	err = s.db.Commit(newRoot, false)
	if err != nil {
		return ledger.Hash{}, err
	}

	err = s.diskDB.Put(headKey, newRoot[:])
	if err != nil {
		return ledger.Hash{}, err
	}

	r := ledger.Hash(newRoot)
	s.tries.Add(r, t)
	log.Debug("state committed", "prev", root, "root", r, "changes", len(changes))
	return r, nil
}

// Leaf is a key-value pair stored in the state.
type Leaf struct {
	Key   []byte
	Value []byte
}

// Leaves returns the key-value pairs at the root whose key starts
// with prefix, in key order.
func (s *MerkleState) Leaves(root ledger.Hash, prefix []byte) ([]Leaf, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.open(root)
	if err != nil {
		return nil, err
	}

	var r []Leaf
	iter := trie.NewIterator(t.NodeIterator(prefix))
	for iter.Next() {
		if !bytes.HasPrefix(iter.Key, prefix) {
			break
		}

		r = append(r, Leaf{
			Key:   common.CopyBytes(iter.Key),
			Value: common.CopyBytes(iter.Value),
		})
	}

	if iter.Err != nil {
		return nil, iter.Err
	}

	return r, nil
}

// Close closes the disk database.
func (s *MerkleState) Close() {
	s.diskDB.Close()
}
