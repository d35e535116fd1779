// Package badger stores topic records in an embedded BadgerDB
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"topicgraph/application/ports"
	pkgerrors "topicgraph/pkg/errors"
)

const (
	prefixTopic   = "topic/"
	prefixVersion = "version/"
)

// TopicStore keeps the current record of a topic under topic/<id> and every
// saved snapshot under version/<id>/<unix nanos>.
type TopicStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens the database at path, or an in-memory one when inMemory is set
func Open(path string, inMemory bool, logger *zap.Logger) (*TopicStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("open badger", err).WithDetail("path", path)
	}
	return NewTopicStore(db, logger), nil
}

// NewTopicStore wraps an open database
func NewTopicStore(db *badger.DB, logger *zap.Logger) *TopicStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicStore{db: db, logger: logger}
}

// Close closes the underlying database
func (s *TopicStore) Close() error {
	return s.db.Close()
}

func topicKey(id string) []byte {
	return []byte(prefixTopic + id)
}

func versionPrefix(id string) []byte {
	return []byte(prefixVersion + id + "/")
}

// versionKey zero-pads the timestamp so keys sort chronologically
func versionKey(id string, version time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixVersion, id, version.UnixNano()))
}

func decode(item *badger.Item) (ports.TopicRecord, error) {
	var record ports.TopicRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	return record, err
}

func get(txn *badger.Txn, key []byte) (*ports.TopicRecord, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	record, err := decode(item)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func set(txn *badger.Txn, key []byte, record ports.TopicRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// LoadAll returns every current record ordered by identity
func (s *TopicStore) LoadAll(ctx context.Context) ([]ports.TopicRecord, error) {
	var records []ports.TopicRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixTopic)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := decode(it.Item())
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load topics", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Load returns the current record of id
func (s *TopicStore) Load(ctx context.Context, id string) (*ports.TopicRecord, error) {
	return s.load(topicKey(id), fmt.Sprintf("topic %s", id))
}

// LoadVersion returns the snapshot of id saved at version
func (s *TopicStore) LoadVersion(ctx context.Context, id string, version time.Time) (*ports.TopicRecord, error) {
	return s.load(versionKey(id, version), fmt.Sprintf("topic %s version %s", id, version.Format(time.RFC3339Nano)))
}

func (s *TopicStore) load(key []byte, resource string) (*ports.TopicRecord, error) {
	var record *ports.TopicRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		record, err = get(txn, key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.NewNotFoundError(resource)
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load topic", err).WithDetail("key", string(key))
	}
	return record, nil
}

// Save writes record and its snapshot in one transaction
func (s *TopicStore) Save(ctx context.Context, record ports.TopicRecord) (string, error) {
	if record.IsNew() {
		record.ID = uuid.New().String()
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		stored, err := get(txn, topicKey(record.ID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		merged := record.MergePartial(stored)
		if err := set(txn, topicKey(record.ID), merged); err != nil {
			return err
		}
		return set(txn, versionKey(record.ID, merged.Version), merged)
	})
	if err != nil {
		return "", pkgerrors.NewDatabaseError("save topic", err).WithDetail("topicID", record.ID)
	}

	s.logger.Debug("Saved topic record",
		zap.String("topicID", record.ID),
		zap.Bool("partial", record.Partial))
	return record.ID, nil
}

// Delete removes ids with their snapshots and strips associations to them
func (s *TopicStore) Delete(ctx context.Context, ids []string) error {
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		for _, id := range ids {
			keys = append(keys, topicKey(id))
			keys = append(keys, versionKeys(txn, id)...)
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return stripTargets(txn, doomed)
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("delete topics", err).WithDetail("count", len(ids))
	}

	s.logger.Debug("Deleted topic records", zap.Strings("topicIDs", ids))
	return nil
}

func versionKeys(txn *badger.Txn, id string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	prefix := versionPrefix(id)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func stripTargets(txn *badger.Txn, doomed map[string]bool) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	var changed []ports.TopicRecord
	prefix := []byte(prefixTopic)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		record, err := decode(it.Item())
		if err != nil {
			it.Close()
			return err
		}
		if doomed[record.ID] {
			continue
		}
		if cleaned, ok := record.WithoutTargets(doomed); ok {
			changed = append(changed, cleaned)
		}
	}
	it.Close()

	for _, record := range changed {
		if err := set(txn, topicKey(record.ID), record); err != nil {
			return err
		}
	}
	return nil
}
