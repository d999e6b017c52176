// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the B+ tree and
// serve as a reference in its tests.
package lsm

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/btree-query-bench/bptidx/dbms/index"
)

const (
	entryPrefix = 'k'
	metaKey     = "m" // next sequence number
	keyLen      = 1 + 4 + 8
	refLen      = 8
)

var _ index.Index = (*LSM)(nil)

// Options configures the Pebble instance.
type Options struct {
	// FS is the filesystem Pebble runs on. Default: the OS filesystem.
	// vfs.NewMem() gives a purely in-memory index.
	FS vfs.FS
	// Logger receives Pebble's own log lines. Default: discards everything.
	Logger *slog.Logger
}

// LSM stores every (key, ref) pair as its own Pebble key. Duplicates are kept
// apart by a sequence number appended to the key, which also preserves their
// insertion order.
type LSM struct {
	db  *pebble.DB
	seq uint64
}

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string, o Options) (*LSM, error) {
	opts := &pebble.Options{
		// Use a 16 MB memtable
		MemTableSize: 16 << 20,
		// Stall writes once 4 memtables are queued for flushing.
		MemTableStopWritesThreshold: 4,
		// L0 compaction trigger.
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
		FS:                    o.FS,
	}
	if o.Logger != nil {
		opts.Logger = slogAdapter{o.Logger}
	} else {
		opts.Logger = slogAdapter{slog.New(slog.DiscardHandler)}
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: open")
	}
	l := &LSM{db: db}

	val, closer, err := db.Get([]byte(metaKey))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		_ = db.Close()
		return nil, errors.Wrap(err, "lsm: read sequence")
	default:
		if len(val) == 8 {
			l.seq = binary.BigEndian.Uint64(val)
		}
		_ = closer.Close()
	}
	return l, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return errors.Wrap(l.db.Close(), "lsm: close")
}

// Insert adds (key, ref). The entry and the advanced sequence number are
// committed in one batch.
func (l *LSM) Insert(key int32, ref index.RecordRef) error {
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.seq+1)

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(encodeKey(key, l.seq), encodeRef(ref), nil); err != nil {
		return errors.Wrap(err, "lsm: insert")
	}
	if err := b.Set([]byte(metaKey), meta[:], nil); err != nil {
		return errors.Wrap(err, "lsm: insert")
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return errors.Wrapf(err, "lsm: insert %d", key)
	}
	l.seq++
	return nil
}

// Get returns every ref stored under key in insertion order.
func (l *LSM) Get(key int32) ([]index.RecordRef, error) {
	it, err := l.Range(key, key)
	if err != nil {
		return nil, err
	}
	var refs []index.RecordRef
	for it.Next() {
		refs = append(refs, it.Ref())
	}
	if err := it.Error(); err != nil {
		_ = it.Close()
		return nil, err
	}
	return refs, it.Close()
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int32) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: keyPrefix(start),
		UpperBound: upperBound(end),
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: range")
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// Flush forces the memtable to disk.
func (l *LSM) Flush() error {
	return errors.Wrap(l.db.Flush(), "lsm: flush")
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// keyPrefix flips the sign bit so the big-endian bytes sort like int32.
func keyPrefix(k int32) []byte {
	b := make([]byte, 5, keyLen)
	b[0] = entryPrefix
	binary.BigEndian.PutUint32(b[1:], uint32(k)^0x80000000)
	return b
}

func encodeKey(k int32, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(keyPrefix(k), seq)
}

func decodeKey(b []byte) (int32, error) {
	if len(b) != keyLen || b[0] != entryPrefix {
		return 0, errors.Newf("lsm: unexpected key %x", b)
	}
	return int32(binary.BigEndian.Uint32(b[1:5]) ^ 0x80000000), nil
}

// upperBound returns the exclusive Pebble bound just past every entry for k.
func upperBound(k int32) []byte {
	if k == math.MaxInt32 {
		return []byte{entryPrefix + 1}
	}
	return keyPrefix(k + 1)
}

func encodeRef(r index.RecordRef) []byte {
	b := make([]byte, refLen)
	binary.BigEndian.PutUint32(b[0:4], r.Page)
	binary.BigEndian.PutUint32(b[4:8], r.Slot)
	return b
}

func decodeRef(b []byte) (index.RecordRef, error) {
	if len(b) != refLen {
		return index.RecordRef{}, errors.Newf("lsm: unexpected value length %d", len(b))
	}
	return index.RecordRef{
		Page: binary.BigEndian.Uint32(b[0:4]),
		Slot: binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int32
	ref   index.RecordRef
	err   error
}

func (it *rangeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		if err := it.iter.Error(); err != nil {
			it.err = errors.Wrap(err, "lsm: iterate")
		}
		return false
	}
	if it.key, it.err = decodeKey(it.iter.Key()); it.err != nil {
		return false
	}
	if it.ref, it.err = decodeRef(it.iter.Value()); it.err != nil {
		return false
	}
	return true
}

func (it *rangeIterator) Key() int32           { return it.key }
func (it *rangeIterator) Ref() index.RecordRef { return it.ref }
func (it *rangeIterator) Error() error         { return it.err }
func (it *rangeIterator) Close() error         { return it.iter.Close() }

// ─── Logging ──────────────────────────────────────────────────────────────────

// slogAdapter routes Pebble's printf-style logger into slog.
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Infof(format string, args ...interface{}) {
	a.log.Info(fmt.Sprintf(format, args...), "component", "pebble")
}

func (a slogAdapter) Errorf(format string, args ...interface{}) {
	a.log.Error(fmt.Sprintf(format, args...), "component", "pebble")
}

func (a slogAdapter) Fatalf(format string, args ...interface{}) {
	a.log.Error(fmt.Sprintf(format, args...), "component", "pebble", "fatal", true)
	panic(fmt.Sprintf(format, args...))
}
