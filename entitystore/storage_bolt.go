package entitystore

import (
	"bytes"
	"errors"
	"unsafe"

	"github.com/andreyvit/dsval"
	"go.etcd.io/bbolt"
)

// Bolt layout: one root bucket per project, holding one nested bucket per
// namespace. The default namespace is nested too, under the bare prefix.
const boltNamespacePrefix = "ns:"

type boltStorage struct {
	bdb *bbolt.DB
}

func (s *boltStorage) BeginTx(writable bool) (storageTx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	return boltTx{btx}, nil
}

func (s *boltStorage) Close() error {
	return s.bdb.Close()
}

type boltTx struct {
	btx *bbolt.Tx
}

func (tx boltTx) Writable() bool { return tx.btx.Writable() }

func (tx boltTx) Partition(part dsval.PartitionID) partitionBucket {
	project := tx.btx.Bucket(unsafeBytes(part.ProjectID))
	if project == nil {
		return nil
	}
	ns := project.Bucket([]byte(boltNamespacePrefix + part.NamespaceID))
	if ns == nil {
		return nil
	}
	return boltPartition{ns}
}

func (tx boltTx) CreatePartition(part dsval.PartitionID) (partitionBucket, error) {
	project, err := tx.btx.CreateBucketIfNotExists([]byte(part.ProjectID))
	if err != nil {
		return nil, err
	}
	ns, err := project.CreateBucketIfNotExists([]byte(boltNamespacePrefix + part.NamespaceID))
	if err != nil {
		return nil, err
	}
	return boltPartition{ns}, nil
}

func (tx boltTx) Commit() error { return tx.btx.Commit() }

func (tx boltTx) Rollback() error {
	if err := tx.btx.Rollback(); !errors.Is(err, bbolt.ErrTxClosed) {
		return err
	}
	return nil
}

type boltPartition struct {
	b *bbolt.Bucket
}

func (p boltPartition) Get(key storageKey) []byte { return p.b.Get(key) }

func (p boltPartition) Put(key storageKey, value []byte) error { return p.b.Put(key, value) }

func (p boltPartition) Delete(key storageKey) error { return p.b.Delete(key) }

func (p boltPartition) Scan(prefix []byte, f func(key storageKey, value []byte) bool) {
	c := p.b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if !f(k, v) {
			return
		}
	}
}

func (p boltPartition) Count() int { return p.b.Stats().KeyN }

// unsafeBytes is for bbolt lookups, which never retain or modify the key.
func unsafeBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
