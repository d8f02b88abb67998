// Package entitystore persists dsval entities in an embedded key-value
// store, either a Bolt file or a transient in-memory database.
//
// Every partition has its own sorted key space. Storage keys lead with
// the kind of the key's last element, so scanning one kind reads a single
// key range. Stored values are an encoding tag byte and a checksum
// followed by the msgpack or wire JSON form of the entity.
package entitystore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/andreyvit/dsval"
	"go.etcd.io/bbolt"
)

type Options struct {
	// Encoding for newly written entities; MsgPack by default.
	Encoding Encoding

	// Logger defaults to slog.Default(). Verbose enables debug records
	// for every write.
	Logger  *slog.Logger
	Verbose bool

	IsTesting bool
	MmapSize  int

	// MaxDepth bounds nesting everywhere: typed Put and Get, and the
	// stored encodings. DefaultMaxDepth when zero.
	MaxDepth                int
	IgnoreUnknownProperties bool
}

type Store struct {
	st       storage
	encoding Encoding
	logger   *slog.Logger
	verbose  bool
	maxDepth int
	ser      dsval.Serializer
	deser    dsval.Deserializer
}

// Open opens or creates a Bolt database file.
func Open(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("entitystore: %w", err)
	}
	return newStore(&boltStorage{bdb}, opt), nil
}

// OpenMemory returns a store that lives only as long as the process.
func OpenMemory(opt Options) *Store {
	return newStore(newMemStorage(), opt)
}

func newStore(st storage, opt Options) *Store {
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = dsval.DefaultMaxDepth
	}
	s := &Store{
		st:       st,
		encoding: opt.Encoding,
		logger:   opt.Logger,
		verbose:  opt.Verbose,
		maxDepth: opt.MaxDepth,
		ser:      dsval.Serializer{MaxDepth: opt.MaxDepth},
		deser: dsval.Deserializer{
			MaxDepth:                opt.MaxDepth,
			IgnoreUnknownProperties: opt.IgnoreUnknownProperties,
		},
	}
	if s.encoding == 0 {
		s.encoding = defaultEncoding
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Store) Close() error {
	return s.st.Close()
}

// Read runs f in a read-only transaction.
func (s *Store) Read(f func(tx *Tx) error) error {
	return s.tx(false, f)
}

// Write runs f in a writable transaction, committing if f returns nil
// and rolling back otherwise. A panic in f rolls back and is returned
// as an error.
func (s *Store) Write(f func(tx *Tx) error) error {
	return s.tx(true, f)
}

func (s *Store) tx(writable bool, f func(tx *Tx) error) error {
	stx, err := s.st.BeginTx(writable)
	if err != nil {
		return fmt.Errorf("entitystore: %w", err)
	}
	tx := &Tx{store: s, stx: stx}
	defer stx.Rollback()

	if err := safelyCall(f, tx); err != nil {
		return err
	}
	if !writable {
		return nil
	}
	if err := stx.Commit(); err != nil {
		return fmt.Errorf("entitystore: commit: %w", err)
	}
	return nil
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

type Tx struct {
	store *Store
	stx   storageTx
}

// Put stores e under key, replacing any existing entity. The key must be
// complete.
func (tx *Tx) Put(key *dsval.Key, e *dsval.Entity) error {
	if err := checkKey(key); err != nil {
		return storeErrf("put", key, err, "")
	}
	if e == nil {
		return storeErrf("put", key, nil, "nil entity")
	}
	data, err := tx.store.encoding.encodeEntity(nil, e, tx.store.maxDepth)
	if err != nil {
		return storeErrf("put", key, err, "")
	}
	b, err := tx.stx.CreatePartition(key.PartitionID)
	if err != nil {
		return storeErrf("put", key, err, "")
	}
	if err := b.Put(encodeKey(nil, key), data); err != nil {
		return storeErrf("put", key, err, "")
	}
	if tx.store.verbose {
		tx.store.logger.LogAttrs(context.Background(), slog.LevelDebug, "entitystore: put", slog.String("key", key.String()), slog.Int("props", e.Len()), slog.Int("size", len(data)), slog.String("enc", tx.store.encoding.String()))
	}
	return nil
}

// Get returns the entity stored under key, or ErrNotFound.
func (tx *Tx) Get(key *dsval.Key) (*dsval.Entity, error) {
	if err := checkKey(key); err != nil {
		return nil, storeErrf("get", key, err, "")
	}
	b := tx.stx.Partition(key.PartitionID)
	if b == nil {
		return nil, storeErrf("get", key, ErrNotFound, "")
	}
	data := b.Get(encodeKey(nil, key))
	if data == nil {
		return nil, storeErrf("get", key, ErrNotFound, "")
	}
	e, err := decodeEntity(data, tx.store.maxDepth)
	if err != nil {
		return nil, storeErrf("get", key, err, "")
	}
	return e, nil
}

// Delete removes the entity stored under key. Deleting a missing entity
// is not an error.
func (tx *Tx) Delete(key *dsval.Key) error {
	if err := checkKey(key); err != nil {
		return storeErrf("delete", key, err, "")
	}
	b := tx.stx.Partition(key.PartitionID)
	if b == nil {
		return nil
	}
	if err := b.Delete(encodeKey(nil, key)); err != nil {
		return storeErrf("delete", key, err, "")
	}
	if tx.store.verbose {
		tx.store.logger.LogAttrs(context.Background(), slog.LevelDebug, "entitystore: delete", slog.String("key", key.String()))
	}
	return nil
}

// Count returns the number of entities in the partition.
func (tx *Tx) Count(part dsval.PartitionID) int {
	b := tx.stx.Partition(part)
	if b == nil {
		return 0
	}
	return b.Count()
}

// Scan calls f for every entity in the partition whose key ends with the
// given kind, or for every entity if kind is empty, in storage key order.
// Scanning stops when f returns false.
func (tx *Tx) Scan(part dsval.PartitionID, kind string, f func(key *dsval.Key, e *dsval.Entity) bool) error {
	b := tx.stx.Partition(part)
	if b == nil {
		return nil
	}
	var err error
	b.Scan(kindPrefix(kind), func(raw storageKey, data []byte) bool {
		var key *dsval.Key
		key, err = decodeKey(part, raw)
		if err != nil {
			err = fmt.Errorf("entitystore: scan: %w", err)
			return false
		}
		var e *dsval.Entity
		e, err = decodeEntity(data, tx.store.maxDepth)
		if err != nil {
			err = storeErrf("scan", key, err, "")
			return false
		}
		return f(key, e)
	})
	return err
}

// Put encodes v, which must encode to an entity, and stores it under key.
func Put[T any](tx *Tx, key *dsval.Key, v T) error {
	e, err := tx.store.ser.EncodeEntity(v)
	if err != nil {
		return storeErrf("put", key, err, "")
	}
	return tx.Put(key, e)
}

// Get loads the entity stored under key and decodes it into a T.
func Get[T any](tx *Tx, key *dsval.Key) (T, error) {
	var result T
	e, err := tx.Get(key)
	if err != nil {
		return result, err
	}
	if err := tx.store.deser.Decode(e, &result); err != nil {
		return result, storeErrf("get", key, err, "")
	}
	return result, nil
}
