package entitystore

import (
	"bytes"
	"errors"
	"slices"
	"sync"

	"github.com/andreyvit/dsval"
)

var (
	errStorageClosed = errors.New("storage closed")
	errTxReadOnly    = errors.New("tx not writable")
	errTxDone        = errors.New("tx already committed or rolled back")
)

// memStorage keeps committed partitions immutable. Readers share them
// freely; a writer copies a partition the first time it touches it and
// publishes its copies on commit. Writers are serialized by writeMu.
type memStorage struct {
	writeMu sync.Mutex

	mu         sync.Mutex
	partitions map[dsval.PartitionID]*memPartition
	closed     bool
}

func newMemStorage() storage {
	return &memStorage{partitions: make(map[dsval.PartitionID]*memPartition)}
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		s.writeMu.Lock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if writable {
			s.writeMu.Unlock()
		}
		return nil, errStorageClosed
	}
	return &memTx{
		s:         s,
		writable:  writable,
		committed: s.partitions,
	}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.partitions = nil
	return nil
}

type memTx struct {
	s         *memStorage
	writable  bool
	done      bool
	committed map[dsval.PartitionID]*memPartition
	dirty     map[dsval.PartitionID]*memPartition
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) Partition(part dsval.PartitionID) partitionBucket {
	if tx.dirty[part] == nil && tx.committed[part] == nil {
		return nil
	}
	return memHandle{tx, part}
}

func (tx *memTx) CreatePartition(part dsval.PartitionID) (partitionBucket, error) {
	if tx.done {
		return nil, errTxDone
	}
	if !tx.writable {
		return nil, errTxReadOnly
	}
	tx.writablePartition(part)
	return memHandle{tx, part}, nil
}

// writablePartition returns this transaction's private copy of part.
func (tx *memTx) writablePartition(part dsval.PartitionID) *memPartition {
	if p := tx.dirty[part]; p != nil {
		return p
	}
	p := &memPartition{}
	if old := tx.committed[part]; old != nil {
		p.entries = slices.Clone(old.entries)
	}
	if tx.dirty == nil {
		tx.dirty = make(map[dsval.PartitionID]*memPartition)
	}
	tx.dirty[part] = p
	return p
}

func (tx *memTx) Commit() error {
	if tx.done {
		return errTxDone
	}
	if !tx.writable {
		return errTxReadOnly
	}
	defer tx.finish()

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.s.closed {
		return errStorageClosed
	}
	next := make(map[dsval.PartitionID]*memPartition, len(tx.s.partitions)+len(tx.dirty))
	for part, p := range tx.s.partitions {
		next[part] = p
	}
	for part, p := range tx.dirty {
		next[part] = p
	}
	tx.s.partitions = next
	return nil
}

func (tx *memTx) Rollback() error {
	if !tx.done {
		tx.finish()
	}
	return nil
}

func (tx *memTx) finish() {
	tx.done = true
	tx.dirty = nil
	if tx.writable {
		tx.s.writeMu.Unlock()
	}
}

// memPartition is a sorted list of entries. Entries are never modified in
// place, so a cloned list can share them with the original.
type memPartition struct {
	entries []memEntry
}

type memEntry struct {
	key   storageKey
	value []byte
}

func (p *memPartition) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(p.entries, key, func(e memEntry, key []byte) int {
		return bytes.Compare(e.key, key)
	})
}

type memHandle struct {
	tx   *memTx
	part dsval.PartitionID
}

// current is the latest state of the partition as seen by the transaction.
func (h memHandle) current() *memPartition {
	if p := h.tx.dirty[h.part]; p != nil {
		return p
	}
	if p := h.tx.committed[h.part]; p != nil {
		return p
	}
	return &memPartition{}
}

func (h memHandle) Get(key storageKey) []byte {
	p := h.current()
	if i, found := p.search(key); found {
		return p.entries[i].value
	}
	return nil
}

func (h memHandle) Put(key storageKey, value []byte) error {
	p, err := h.writable()
	if err != nil {
		return err
	}
	e := memEntry{slices.Clone(key), slices.Clone(value)}
	if i, found := p.search(key); found {
		p.entries[i] = e
	} else {
		p.entries = slices.Insert(p.entries, i, e)
	}
	return nil
}

func (h memHandle) Delete(key storageKey) error {
	p, err := h.writable()
	if err != nil {
		return err
	}
	if i, found := p.search(key); found {
		p.entries = slices.Delete(p.entries, i, i+1)
	}
	return nil
}

func (h memHandle) writable() (*memPartition, error) {
	if h.tx.done {
		return nil, errTxDone
	}
	if !h.tx.writable {
		return nil, errTxReadOnly
	}
	return h.tx.writablePartition(h.part), nil
}

func (h memHandle) Scan(prefix []byte, f func(key storageKey, value []byte) bool) {
	p := h.current()
	i, _ := p.search(prefix)
	for _, e := range p.entries[i:] {
		if !bytes.HasPrefix(e.key, prefix) || !f(e.key, e.value) {
			return
		}
	}
}

func (h memHandle) Count() int { return len(h.current().entries) }
