package entitystore

import "github.com/andreyvit/dsval"

// storage is a backend that keeps one sorted key space per partition.
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	Writable() bool

	// Partition returns the entities of part, or nil if nothing was ever
	// stored there.
	Partition(part dsval.PartitionID) partitionBucket

	// CreatePartition is Partition for writable transactions; it makes
	// room for the partition if needed.
	CreatePartition(part dsval.PartitionID) (partitionBucket, error)

	Commit() error

	// Rollback aborts the transaction; it is a no-op after Commit.
	Rollback() error
}

// partitionBucket maps storage keys to encoded entities. Returned slices
// are only valid until the transaction ends.
type partitionBucket interface {
	Get(key storageKey) []byte
	Put(key storageKey, value []byte) error
	Delete(key storageKey) error

	// Scan calls f for every entry whose key starts with prefix, in key
	// order, until f returns false.
	Scan(prefix []byte, f func(key storageKey, value []byte) bool)

	Count() int
}
