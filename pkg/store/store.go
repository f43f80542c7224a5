package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

type Config struct {
	// Dir is the database directory. Empty with InMemory unset is an error.
	Dir      string
	InMemory bool
	Logger   zerolog.Logger
}

// Store implements certificate.RecordStore on Badger.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

var _ certificate.RecordStore = (*Store)(nil)

// Open opens or creates the database described by config.
func Open(config Config) (*Store, error) {
	if strings.TrimSpace(config.Dir) == "" && !config.InMemory {
		return nil, fmt.Errorf("store directory is required")
	}

	logger := config.Logger.With().Str("component", "store").Logger()

	options := badger.DefaultOptions(config.Dir).
		WithLogger(badgerLogger{log: logger})
	if config.InMemory {
		options = badger.DefaultOptions("").
			WithInMemory(true).
			WithLogger(badgerLogger{log: logger})
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	return &Store{db: db, log: logger}, nil
}

// New wraps an already opened database.
func New(db *badger.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, log: logger.With().Str("component", "store").Logger()}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores record together with its batch leaf and holder index entries.
// It fails with certificate.ErrAlreadyExists when the scope already holds a
// record for the same hash, or the batch already holds the external ID.
func (s *Store) Put(ctx context.Context, record certificate.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}

	err := retryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		if err := insert(recordKey(record.Scope, record.DocHash), record)(tx); err != nil {
			return fmt.Errorf("record %s: %w", record.DocHash, err)
		}
		if record.Kind == certificate.KindBatch {
			key := batchLeafKey(record.Scope, record.BatchID, record.ExternalID)
			if err := insert(key, record.Leaf())(tx); err != nil {
				return fmt.Errorf("leaf %s of batch %s: %w", record.ExternalID, record.BatchID, err)
			}
		}
		if record.HolderID != "" {
			if err := insert(holderIndexKey(record.Scope, record.HolderID, record.DocHash), nil)(tx); err != nil {
				return fmt.Errorf("holder index %s: %w", record.HolderID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not put certificate record: %w", err)
	}

	s.log.Debug().
		Str("scope", record.Scope.String()).
		Str("hash", record.DocHash.Hex()).
		Str("kind", string(record.Kind)).
		Msg("certificate record stored")
	return nil
}

// FindByHash returns the record for hash in scope, or nil when none exists.
func (s *Store) FindByHash(
	ctx context.Context,
	hash digest.Digest,
	scope certificate.Scope,
) (*certificate.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record certificate.Record
	err := s.db.View(retrieve(recordKey(scope, hash), &record))
	if errors.Is(err, certificate.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve certificate record: %w", err)
	}
	return &record, nil
}

// FindLeavesByBatch returns every leaf stored under batchID, ordered by
// external ID.
func (s *Store) FindLeavesByBatch(
	ctx context.Context,
	scope certificate.Scope,
	batchID string,
) ([]certificate.DocumentLeaf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	leaves := make([]certificate.DocumentLeaf, 0)
	prefix := makePrefix(codeBatchLeaf, string(scope), batchID)
	err := s.db.View(traverse(prefix, false, func(_ []byte, val []byte) error {
		var leaf certificate.DocumentLeaf
		if err := json.Unmarshal(val, &leaf); err != nil {
			return fmt.Errorf("could not decode batch leaf: %w", err)
		}
		leaves = append(leaves, leaf)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not iterate leaves of batch %s: %w", batchID, err)
	}
	return leaves, nil
}

// List returns the records of scope. A non-empty holderID restricts the
// result to that holder's records.
func (s *Store) List(
	ctx context.Context,
	scope certificate.Scope,
	holderID string,
) ([]certificate.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]certificate.Record, 0)
	if strings.TrimSpace(holderID) == "" {
		err := s.db.View(traverse(makePrefix(codeRecord, string(scope)), false, func(_ []byte, val []byte) error {
			var record certificate.Record
			if err := json.Unmarshal(val, &record); err != nil {
				return fmt.Errorf("could not decode certificate record: %w", err)
			}
			records = append(records, record)
			return nil
		}))
		if err != nil {
			return nil, fmt.Errorf("could not list certificate records: %w", err)
		}
		return records, nil
	}

	prefix := makePrefix(codeHolderIndex, string(scope), holderID)
	err := s.db.View(func(tx *badger.Txn) error {
		hashes := make([]digest.Digest, 0)
		err := traverse(prefix, true, func(key []byte, _ []byte) error {
			var hash digest.Digest
			copy(hash[:], key[len(prefix):])
			hashes = append(hashes, hash)
			return nil
		})(tx)
		if err != nil {
			return err
		}

		for _, hash := range hashes {
			var record certificate.Record
			if err := retrieve(recordKey(scope, hash), &record)(tx); err != nil {
				return fmt.Errorf("holder index points at %s: %w", hash, err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not list records of holder %s: %w", holderID, err)
	}
	return records, nil
}
