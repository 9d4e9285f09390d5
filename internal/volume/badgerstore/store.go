// Package badgerstore keeps a local volume inventory in a Badger KV store.
// It backs the volume modules when no cloud account is configured and in
// tests.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joacominatel/minaops/internal/volume"
	"github.com/sirupsen/logrus"
)

const (
	prefixVolume = "vol/"
	prefixName   = "name/"
	keySequence  = "seq/volume"

	defaultLocation = "local"
)

// Config selects where the inventory lives.
type Config struct {
	DataDir  string
	InMemory bool
	Logger   logrus.FieldLogger
}

// Store implements volume.Store on Badger.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	log logrus.FieldLogger
	now func() time.Time

	// mu serializes writers so name uniqueness checks and writes are atomic
	// with respect to each other.
	mu sync.Mutex
}

var _ volume.Store = (*Store)(nil)

// Open opens or creates the inventory.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("%w: data_dir is required for the local volume store", volume.ErrInvalidParams)
		}
		opts = badger.DefaultOptions(cfg.DataDir)
	}
	opts = opts.WithLogger(nil).WithSyncWrites(!cfg.InMemory)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger database: %v", volume.ErrUnavailable, err)
	}
	seq, err := db.GetSequence([]byte(keySequence), 16)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: volume id sequence: %v", volume.ErrUnavailable, err)
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, seq: seq, log: log, now: time.Now}, nil
}

// Close releases the id sequence and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.log.WithError(err).Warn("release volume sequence")
	}
	return s.db.Close()
}

func volumeKey(id int64) []byte {
	k := make([]byte, len(prefixVolume)+8)
	copy(k, prefixVolume)
	binary.BigEndian.PutUint64(k[len(prefixVolume):], uint64(id))
	return k
}

func nameKey(name string) []byte {
	return []byte(prefixName + name)
}

func getVolume(txn *badger.Txn, id int64) (*volume.Volume, error) {
	item, err := txn.Get(volumeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v volume.Volume
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	})
	if err != nil {
		return nil, fmt.Errorf("decode volume %d: %w", id, err)
	}
	return &v, nil
}

func putVolume(txn *badger.Txn, v *volume.Volume) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode volume %d: %w", v.ID, err)
	}
	return txn.Set(volumeKey(v.ID), raw)
}

// Get returns the volume with the given id or nil.
func (s *Store) Get(_ context.Context, id int64) (*volume.Volume, error) {
	var v *volume.Volume
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = getVolume(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get volume %d: %w", id, err)
	}
	return v, nil
}

// GetByName returns the volume with the given name or nil.
func (s *Store) GetByName(_ context.Context, name string) (*volume.Volume, error) {
	var v *volume.Volume
	err := s.db.View(func(txn *badger.Txn) error {
		id, ok, err := lookupName(txn, name)
		if err != nil || !ok {
			return err
		}
		v, err = getVolume(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get volume %q: %w", name, err)
	}
	return v, nil
}

func lookupName(txn *badger.Txn, name string) (int64, bool, error) {
	item, err := txn.Get(nameKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt name index for %q", name)
		}
		id = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return id, err == nil, err
}

// List returns all volumes whose labels satisfy sel, ordered by id.
func (s *Store) List(ctx context.Context, sel volume.LabelSelector) ([]volume.Volume, error) {
	out := []volume.Volume{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixVolume)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var v volume.Volume
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if sel.Matches(v.Labels) {
				out = append(out, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	return out, nil
}

// Create adds a volume. Names are unique.
func (s *Store) Create(_ context.Context, opts volume.CreateOpts) (*volume.Volume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: next volume id: %v", volume.ErrUnavailable, err)
	}
	id := int64(next) + 1

	location := opts.Location
	if location == "" {
		location = defaultLocation
	}
	labels := maps.Clone(opts.Labels)
	if labels == nil {
		labels = map[string]string{}
	}
	v := &volume.Volume{
		ID:          id,
		Name:        opts.Name,
		Labels:      labels,
		Size:        opts.Size,
		Location:    location,
		Server:      opts.Server,
		LinuxDevice: fmt.Sprintf("/dev/disk/by-id/scsi-0HC_Volume_%d", id),
		Format:      opts.Format,
		Status:      "available",
		Created:     s.now().UTC().Truncate(time.Second),
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, exists, err := lookupName(txn, opts.Name); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: volume name %q already used", volume.ErrRejected, opts.Name)
		}
		idBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(idBytes, uint64(id))
		if err := txn.Set(nameKey(opts.Name), idBytes); err != nil {
			return err
		}
		return putVolume(txn, v)
	})
	if err != nil {
		return nil, fmt.Errorf("create volume %q: %w", opts.Name, err)
	}
	s.log.WithFields(logrus.Fields{"id": id, "name": opts.Name}).Debug("volume created")
	return v, nil
}

// Update applies opts to an existing volume.
func (s *Store) Update(_ context.Context, id int64, opts volume.UpdateOpts) (*volume.Volume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v *volume.Volume
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		v, err = getVolume(txn, id)
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("%w: volume %d not found", volume.ErrRejected, id)
		}
		if opts.Size != nil {
			v.Size = *opts.Size
		}
		if opts.Labels != nil {
			v.Labels = maps.Clone(opts.Labels)
		}
		if opts.Server != nil {
			v.Server = *opts.Server
		}
		return putVolume(txn, v)
	})
	if err != nil {
		return nil, fmt.Errorf("update volume %d: %w", id, err)
	}
	return v, nil
}

// Delete removes a volume and its name index entry. Deleting a missing
// volume is not an error.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		v, err := getVolume(txn, id)
		if err != nil || v == nil {
			return err
		}
		if err := txn.Delete(nameKey(v.Name)); err != nil {
			return err
		}
		return txn.Delete(volumeKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete volume %d: %w", id, err)
	}
	s.log.WithField("id", id).Debug("volume deleted")
	return nil
}
