package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/helinwang/prodcon/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *MerkleState {
	s, err := NewMemState(16)
	require.NoError(t, err)
	return s
}

func set(k, v string) ledger.StateChange {
	return ledger.StateChange{Type: ledger.Set, Key: []byte(k), Value: []byte(v)}
}

func TestCommitAndGet(t *testing.T) {
	s := newTestState(t)
	r0 := s.EmptyRoot()

	r1, err := s.Commit(r0, []ledger.StateChange{set("a", "1")})
	require.NoError(t, err)
	assert.NotEqual(t, r0, r1)

	r2, err := s.Commit(r1, []ledger.StateChange{set("a", "2"), set("b", "3")})
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)

	v, err := s.Get(r1, [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1")}, v)

	v, err = s.Get(r2, [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("2"), "b": []byte("3")}, v)

	v, err = s.Get(r0, [][]byte{[]byte("a")})
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestCommitDeterministic(t *testing.T) {
	s0 := newTestState(t)
	s1 := newTestState(t)
	changes := []ledger.StateChange{set("a", "1"), set("b", "2")}

	r0, err := s0.Commit(s0.EmptyRoot(), changes)
	require.NoError(t, err)
	r1, err := s1.Commit(s1.EmptyRoot(), changes)
	require.NoError(t, err)
	assert.Equal(t, r0, r1)
}

func TestDelete(t *testing.T) {
	s := newTestState(t)
	r1, err := s.Commit(s.EmptyRoot(), []ledger.StateChange{set("a", "1")})
	require.NoError(t, err)

	r2, err := s.Commit(r1, []ledger.StateChange{{Type: ledger.Delete, Key: []byte("a")}})
	require.NoError(t, err)
	assert.Equal(t, s.EmptyRoot(), r2)
}

func TestCommitUnknownRoot(t *testing.T) {
	s := newTestState(t)
	_, err := s.Commit(ledger.SHA3([]byte("nope")), []ledger.StateChange{set("a", "1")})
	assert.ErrorIs(t, err, ErrUnknownRoot)
	assert.False(t, s.Has(ledger.SHA3([]byte("nope"))))
}

func TestCommitEmptyValue(t *testing.T) {
	s := newTestState(t)
	_, err := s.Commit(s.EmptyRoot(), []ledger.StateChange{set("a", "")})
	assert.Error(t, err)
}

func TestHead(t *testing.T) {
	db := ethdb.NewMemDatabase()
	s, err := NewMerkleState(db, 4)
	require.NoError(t, err)
	assert.Equal(t, s.EmptyRoot(), s.Head())

	r, err := s.Commit(s.EmptyRoot(), []ledger.StateChange{set("a", "1")})
	require.NoError(t, err)
	assert.Equal(t, r, s.Head())

	// a new store over the same database resumes from the head
	s1, err := NewMerkleState(db, 4)
	require.NoError(t, err)
	assert.Equal(t, r, s1.Head())
	v, err := s1.Get(r, [][]byte{[]byte("a")})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v["a"])
}

func TestLeaves(t *testing.T) {
	s := newTestState(t)
	r, err := s.Commit(s.EmptyRoot(), []ledger.StateChange{
		set("x2", "2"),
		set("x1", "1"),
		set("y1", "3"),
	})
	require.NoError(t, err)

	leaves, err := s.Leaves(r, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []Leaf{
		{Key: []byte("x1"), Value: []byte("1")},
		{Key: []byte("x2"), Value: []byte("2")},
	}, leaves)

	leaves, err = s.Leaves(r, nil)
	require.NoError(t, err)
	assert.Len(t, leaves, 3)
}

func TestExportImport(t *testing.T) {
	s0 := newTestState(t)
	root := s0.EmptyRoot()
	var err error
	for i := 0; i < 200; i++ {
		key := ledger.SHA3([]byte{byte(i >> 8), byte(i)})
		val := ledger.SHA3(key[:])
		root, err = s0.Commit(root, []ledger.StateChange{{Type: ledger.Set, Key: key[:], Value: val[:]}})
		require.NoError(t, err)
	}

	b, err := s0.Export(root)
	require.NoError(t, err)
	assert.Equal(t, root, b.Root)

	s1 := newTestState(t)
	assert.False(t, s1.Has(root))
	require.NoError(t, s1.Import(b))
	assert.True(t, s1.Has(root))

	l0, err := s0.Leaves(root, nil)
	require.NoError(t, err)
	l1, err := s1.Leaves(root, nil)
	require.NoError(t, err)
	assert.Equal(t, l0, l1)
}

func TestOpenResumesFromDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 4)
	require.NoError(t, err)
	assert.Equal(t, s.EmptyRoot(), s.Head())

	r1, err := s.Commit(s.EmptyRoot(), []ledger.StateChange{set("a", "1")})
	require.NoError(t, err)
	r2, err := s.Commit(r1, []ledger.StateChange{set("b", "2")})
	require.NoError(t, err)
	s.Close()

	s, err = Open(dir, 4)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, r2, s.Head())

	v, err := s.Get(r2, [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, v)

	// older versions survive the reopen
	v, err = s.Get(r1, [][]byte{[]byte("b")})
	require.NoError(t, err)
	assert.Empty(t, v)

	r3, err := s.Commit(r2, []ledger.StateChange{set("a", "3")})
	require.NoError(t, err)
	assert.Equal(t, r3, s.Head())
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open("", 4)
	require.NoError(t, err)
	assert.Equal(t, s.EmptyRoot(), s.Head())
}

func TestTrieBlobEncodeDecode(t *testing.T) {
	s0 := newTestState(t)
	root, err := s0.Commit(s0.EmptyRoot(), []ledger.StateChange{set("a", "1"), set("b", "2")})
	require.NoError(t, err)

	b, err := s0.Export(root)
	require.NoError(t, err)
	d := b.Encode()
	assert.Equal(t, d, b.Encode())

	decoded, err := DecodeTrieBlob(d)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)

	s1, err := Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s1.Close()
	require.NoError(t, s1.Import(decoded))
	v, err := s1.Get(root, [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, v)

	_, err = DecodeTrieBlob([]byte("garbage"))
	assert.Error(t, err)
}
