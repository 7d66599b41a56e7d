package evidence

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerDataPrefix = "evidence:data:"
	badgerMetaPrefix = "evidence:meta:"
)

// BadgerStore 单机部署和开发环境使用的本地存储
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadger path 为空时使用内存模式
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func (s *BadgerStore) WithClock(now func() time.Time) *BadgerStore {
	s.now = now
	return s
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Put(ctx context.Context, key, contentType string, data []byte) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	obj := describe(key, contentType, data, s.now())
	meta, err := json.Marshal(obj)
	if err != nil {
		return Object{}, err
	}

	// 数据和元数据在同一事务里写入
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerDataPrefix+key), data); err != nil {
			return err
		}
		return txn.Set([]byte(badgerMetaPrefix+key), meta)
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to write evidence: %w", err)
	}
	return obj, nil
}

func (s *BadgerStore) Exists(ctx context.Context, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerMetaPrefix + key))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get 读取对象内容
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerDataPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// List badger 按键排序，这里扫描全部元数据后按时间过滤
func (s *BadgerStore) List(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]Object, error) {
	var out []Object
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerMetaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var obj Object
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &obj)
			}); err != nil {
				return err
			}
			if obj.CreatedAt.Before(createdBefore) && obj.CreatedAt.After(createdAfter) {
				out = append(out, obj)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByCreatedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(badgerDataPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(badgerMetaPrefix + key))
	})
}
