// Package archive keeps finished solver sessions in an embedded badger
// database so they can be listed, inspected and charted after the fact.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ruler-racer/rulerdash/internal/session"
)

const keyPrefix = "session/"

// ErrNotFound is returned by Get for an unknown session ID.
var ErrNotFound = errors.New("archive: session not found")

// Record is one archived session.
type Record struct {
	ID         string                     `json:"id"`
	State      session.State              `json:"state"`
	History    map[string][]session.Point `json:"history"`
	ArchivedAt time.Time                  `json:"archivedAt"`
}

// Store wraps the badger handle.
type Store struct {
	db *badger.DB
}

type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

// Open opens (creating if needed) the archive.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("archive: path is required")
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0750); err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", opts.Path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway archive.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

func (s *Store) Close() error { return s.db.Close() }

// Put stores rec, replacing any record with the same ID.
func (s *Store) Put(rec Record) error {
	if rec.ID == "" {
		return errors.New("archive: record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: encode %s: %w", rec.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.ID), data)
	})
}

// Get loads one record.
func (s *Store) Get(id string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns every record, oldest archive first.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("archive: decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ArchivedAt.Before(out[j].ArchivedAt)
	})
	return out, nil
}

// Resolve finds a record by full ID or unique prefix.
func (s *Store) Resolve(prefix string) (Record, error) {
	if rec, err := s.Get(prefix); err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}
	all, err := s.List()
	if err != nil {
		return Record{}, err
	}
	var match []Record
	for _, r := range all {
		if strings.HasPrefix(r.ID, prefix) {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return Record{}, ErrNotFound
	case 1:
		return match[0], nil
	default:
		return Record{}, fmt.Errorf("archive: prefix %q matches %d sessions", prefix, len(match))
	}
}

// badgerLogger routes badger's internal logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
