// Package storage persists scene graphs and behaviour profiles to
// BadgerDB.
//
// The store is a snapshot layer, not a write-ahead log: each Save call
// replaces the previous snapshot of that record family wholesale. Records
// are JSON-encoded and keyed with single-byte prefixes.
//
// Example Usage:
//
//	store, err := storage.NewStore("./data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.SaveScene(graph.AllNodes(), graph.AllRelationships()); err != nil {
//		log.Printf("snapshot failed: %v", err)
//	}
package storage

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/orneryd/huginn/pkg/behavior"
	"github.com/orneryd/huginn/pkg/scene"
)

// Key prefixes for BadgerDB storage organization.
// Single-byte prefixes keep keys compact.
const (
	prefixNode         = byte(0x01) // node:nodeID -> scene.Node
	prefixRelationship = byte(0x02) // rel:relationshipID -> scene.Relationship
	prefixProfile      = byte(0x03) // profile:profileID -> behavior.Profile
	prefixInsight      = byte(0x04) // insight:insightID -> behavior.Insight
)

// Options configures the store.
type Options struct {
	// DataDir is the Badger directory. Ignored when InMemory is set.
	DataDir string
	// InMemory keeps all data in RAM. For tests.
	InMemory bool
	// SyncWrites forces fsync after each write.
	SyncWrites bool
}

// Store is a BadgerDB-backed snapshot store.
//
// Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// NewStore opens a store at dataDir with default options.
func NewStore(dataDir string) (*Store, error) {
	return NewStoreWithOptions(Options{DataDir: dataDir})
}

// NewStoreWithOptions opens a store with custom configuration.
func NewStoreWithOptions(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreInMemory opens an in-memory store for testing. Data is lost on
// Close.
func NewStoreInMemory() (*Store, error) {
	return NewStoreWithOptions(Options{InMemory: true})
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveScene replaces the stored scene snapshot.
func (s *Store) SaveScene(nodes []*scene.Node, relationships []*scene.Relationship) error {
	if err := s.dropPrefixes(prefixNode, prefixRelationship); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, node := range nodes {
			if err := setJSON(txn, key(prefixNode, string(node.ID)), node); err != nil {
				return fmt.Errorf("save node %s: %w", node.ID, err)
			}
		}
		for _, rel := range relationships {
			if err := setJSON(txn, key(prefixRelationship, string(rel.ID)), rel); err != nil {
				return fmt.Errorf("save relationship %s: %w", rel.ID, err)
			}
		}
		return nil
	})
}

// LoadScene reads the stored scene snapshot. Returns empty slices when no
// snapshot exists.
func (s *Store) LoadScene() ([]*scene.Node, []*scene.Relationship, error) {
	var nodes []*scene.Node
	var relationships []*scene.Relationship

	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanJSON(txn, prefixNode, func(data []byte) error {
			node := &scene.Node{}
			if err := json.Unmarshal(data, node); err != nil {
				return err
			}
			nodes = append(nodes, node)
			return nil
		}); err != nil {
			return err
		}
		return scanJSON(txn, prefixRelationship, func(data []byte) error {
			rel := &scene.Relationship{}
			if err := json.Unmarshal(data, rel); err != nil {
				return err
			}
			relationships = append(relationships, rel)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load scene: %w", err)
	}
	return nodes, relationships, nil
}

// SaveProfiles replaces the stored behaviour profiles and insights.
func (s *Store) SaveProfiles(profiles []*behavior.Profile, insights []*behavior.Insight) error {
	if err := s.dropPrefixes(prefixProfile, prefixInsight); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, p := range profiles {
			if err := setJSON(txn, key(prefixProfile, p.ID), p); err != nil {
				return fmt.Errorf("save profile %s: %w", p.ID, err)
			}
		}
		for _, in := range insights {
			if err := setJSON(txn, key(prefixInsight, in.ID), in); err != nil {
				return fmt.Errorf("save insight %s: %w", in.ID, err)
			}
		}
		return nil
	})
}

// LoadProfiles reads the stored behaviour profiles and insights.
func (s *Store) LoadProfiles() ([]*behavior.Profile, []*behavior.Insight, error) {
	var profiles []*behavior.Profile
	var insights []*behavior.Insight

	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanJSON(txn, prefixProfile, func(data []byte) error {
			p := &behavior.Profile{}
			if err := json.Unmarshal(data, p); err != nil {
				return err
			}
			profiles = append(profiles, p)
			return nil
		}); err != nil {
			return err
		}
		return scanJSON(txn, prefixInsight, func(data []byte) error {
			in := &behavior.Insight{}
			if err := json.Unmarshal(data, in); err != nil {
				return err
			}
			insights = append(insights, in)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load profiles: %w", err)
	}
	return profiles, insights, nil
}

func (s *Store) dropPrefixes(prefixes ...byte) error {
	for _, p := range prefixes {
		if err := s.db.DropPrefix([]byte{p}); err != nil {
			return fmt.Errorf("drop prefix 0x%02x: %w", p, err)
		}
	}
	return nil
}

func key(prefix byte, id string) []byte {
	return append([]byte{prefix}, []byte(id)...)
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func scanJSON(txn *badger.Txn, prefix byte, fn func(data []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{prefix}
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
