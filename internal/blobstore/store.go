package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// ErrNotFound 按键查找未命中
var ErrNotFound = errors.New("blobstore: key not found")

// Store 内容寻址的页面快照库：键为正文 sha256 的十六进制，
// 相同内容天然去重，版本历史只记键不复制正文。
type Store struct {
	db     *badger.DB
	logger *logrus.Logger
}

// Open 在指定目录打开快照库；dir 为空时使用纯内存模式（测试用）
func Open(dir string, logger *logrus.Logger) (*Store, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开快照库失败: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Key 计算内容键：正文 sha256 的十六进制
func Key(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Put 写入一份正文，返回内容键。键已存在时为无代价幂等写。
func (s *Store) Put(body []byte) (string, error) {
	key := Key(body)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(key), body)
	})
	if err != nil {
		return "", fmt.Errorf("写入快照失败: %w", err)
	}
	return key, nil
}

// Get 按内容键取正文；未命中返回 ErrNotFound
func (s *Store) Get(key string) ([]byte, error) {
	var body []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Has 检查内容键是否存在
func (s *Store) Has(key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close 关闭底层存储
func (s *Store) Close() error {
	return s.db.Close()
}
