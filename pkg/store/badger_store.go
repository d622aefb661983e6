package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/rzbill/herd/pkg/log"
)

var _ Store = &BadgerStore{}

// BadgerStore keeps herd's records in a Badger database under the data
// directory. Opening it with an empty path keeps everything in memory.
type BadgerStore struct {
	db     *badger.DB
	path   string
	logger log.Logger
}

// NewBadgerStore returns an unopened store.
func NewBadgerStore(logger log.Logger) *BadgerStore {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &BadgerStore{logger: logger.WithComponent("store")}
}

// Open opens or creates the database at path.
func (s *BadgerStore) Open(path string) error {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{s.logger})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open store at %q: %w", path, err)
	}
	s.db, s.path = db, path
	s.logger.Debug("Store opened", log.Str("path", path), log.Bool("inMemory", path == ""))
	return nil
}

// Close closes the database. Closing a closed store is a no-op.
func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	s.logger.Debug("Store closed", log.Str("path", s.path))
	return db.Close()
}

func (s *BadgerStore) Create(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	return s.put(ctx, resourceRef{resourceType, scope, name}, resource, putCreate)
}

func (s *BadgerStore) Update(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	return s.put(ctx, resourceRef{resourceType, scope, name}, resource, putUpdate)
}

func (s *BadgerStore) Put(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	return s.put(ctx, resourceRef{resourceType, scope, name}, resource, putUpsert)
}

func (s *BadgerStore) put(ctx context.Context, ref resourceRef, resource interface{}, mode putMode) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ref, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if mode != putUpsert {
			_, err := txn.Get(ref.key())
			exists := err == nil
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to read %s: %w", ref, err)
			}
			if err := mode.check(ref, exists); err != nil {
				return err
			}
		}
		return txn.Set(ref.key(), data)
	})
}

func (s *BadgerStore) Get(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ref := resourceRef{resourceType, scope, name}

	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ref.key())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ref.notFound()
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", ref, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, resource)
		})
	})
}

func (s *BadgerStore) Delete(ctx context.Context, resourceType, scope, name string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ref := resourceRef{resourceType, scope, name}

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(ref.key())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ref.notFound()
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", ref, err)
		}
		return txn.Delete(ref.key())
	})
}

// List decodes every resource under the type and scope, in key order,
// into the slice resource points to.
func (s *BadgerStore) List(ctx context.Context, resourceType, scope string, resource interface{}) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	prefix := MakePrefix(resourceType, scope)

	var raw []json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", it.Item().Key(), err)
			}
			raw = append(raw, val)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return decodeList(raw, resource)
}

func (s *BadgerStore) ready(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	return ctx.Err()
}

// badgerLogger routes badger's own messages into herd's log, demoting
// its chatty info output to debug.
type badgerLogger struct{ log.Logger }

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf("badger: "+format, args...)
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Errorf("badger: "+format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Logger.Debugf("badger: "+format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debugf("badger: "+format, args...)
}
