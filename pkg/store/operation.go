package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	codeRecord      byte = 0x01
	codeBatchLeaf   byte = 0x02
	codeHolderIndex byte = 0x03

	separator byte = 0x00
)

func makePrefix(code byte, parts ...string) []byte {
	size := 1
	for _, part := range parts {
		size += len(part) + 1
	}

	key := make([]byte, 0, size)
	key = append(key, code)
	for _, part := range parts {
		key = append(key, part...)
		key = append(key, separator)
	}
	return key
}

func recordKey(scope certificate.Scope, hash digest.Digest) []byte {
	return append(makePrefix(codeRecord, string(scope)), hash[:]...)
}

func batchLeafKey(scope certificate.Scope, batchID, externalID string) []byte {
	return append(makePrefix(codeBatchLeaf, string(scope), batchID), externalID...)
}

func holderIndexKey(scope certificate.Scope, holderID string, hash digest.Digest) []byte {
	return append(makePrefix(codeHolderIndex, string(scope), holderID), hash[:]...)
}

// insert encodes entity and stores it under key. It fails with
// certificate.ErrAlreadyExists if the key is taken.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return certificate.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}

		var val []byte
		if entity != nil {
			val, err = json.Marshal(entity)
			if err != nil {
				return fmt.Errorf("could not encode entity: %w", err)
			}
		}

		if err := tx.Set(key, val); err != nil {
			return fmt.Errorf("could not store data: %w", err)
		}
		return nil
	}
}

// retrieve decodes the value under key into entity. It fails with
// certificate.ErrNotFound if the key is absent.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return certificate.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load data: %w", err)
		}

		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, entity)
		})
		if err != nil {
			return fmt.Errorf("could not decode entity: %w", err)
		}
		return nil
	}
}

// traverse calls handle with every key and value under prefix in key order.
func traverse(prefix []byte, keysOnly bool, handle func(key, val []byte) error) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.PrefetchValues = !keysOnly

		it := tx.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)

			if keysOnly {
				if err := handle(key, nil); err != nil {
					return err
				}
				continue
			}

			err := item.Value(func(val []byte) error {
				return handle(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// retryOnConflict re-runs op while badger reports a transaction conflict.
func retryOnConflict(action func(func(*badger.Txn) error) error, op func(*badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
