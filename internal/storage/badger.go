package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkstash/internal/domain"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// itemKey formats user:{userID}:item:{id}.
func itemKey(userID int64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("user:%d:item:%s", userID, id))
}

// userPrefix is the key prefix of every item belonging to a user.
func userPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("user:%d:item:", userID))
}

// SaveItem stores or replaces an item.
func (r *BadgerRepository) SaveItem(ctx context.Context, item domain.SavedItem) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": item.UserID,
		"item_id": item.ID,
	})

	if item.ID == uuid.Nil {
		return errors.New("item has no id")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	data, err := json.Marshal(item)
	if err != nil {
		log.WithError(err).Error("Failed to marshal item to JSON")
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(itemKey(item.UserID, item.ID), data))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save item to BadgerDB")
		return fmt.Errorf("failed to save item: %w", err)
	}

	log.WithField("kind", item.Kind).Info("Item saved")
	return nil
}

// GetItem returns one item.
func (r *BadgerRepository) GetItem(ctx context.Context, userID int64, id uuid.UUID) (domain.SavedItem, error) {
	var item domain.SavedItem
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = getItem(txn, itemKey(userID, id))
		return err
	})
	if err != nil {
		return domain.SavedItem{}, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

func getItem(txn *badger.Txn, key []byte) (domain.SavedItem, error) {
	var item domain.SavedItem
	entry, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return item, ErrNotFound
	}
	if err != nil {
		return item, err
	}
	data, err := entry.ValueCopy(nil)
	if err != nil {
		return item, err
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return item, fmt.Errorf("failed to unmarshal item data for key %s: %w", key, err)
	}
	return item, nil
}

// FindItem resolves an ID prefix, as typed by a user, to a single item.
func (r *BadgerRepository) FindItem(ctx context.Context, userID int64, idPrefix string) (domain.SavedItem, error) {
	idPrefix = strings.ToLower(strings.TrimSpace(idPrefix))
	if idPrefix == "" {
		return domain.SavedItem{}, ErrNotFound
	}

	var (
		found domain.SavedItem
		count int
	)
	prefix := append(userPrefix(userID), idPrefix...)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
			if count > 1 {
				return ErrAmbiguousPrefix
			}
			item, err := getItem(txn, it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			found = item
		}
		if count == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return domain.SavedItem{}, fmt.Errorf("failed to find item %q: %w", idPrefix, err)
	}
	return found, nil
}

// GetItemsByUser retrieves all items for a user, newest first.
func (r *BadgerRepository) GetItemsByUser(ctx context.Context, userID int64) ([]domain.SavedItem, error) {
	log := r.log.WithField("user_id", userID)

	var items []domain.SavedItem
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := userPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			entry := it.Item()
			err := entry.Value(func(val []byte) error {
				var item domain.SavedItem
				if err := json.Unmarshal(val, &item); err != nil {
					log.WithError(err).WithField("key", string(entry.Key())).Error("Failed to unmarshal item from DB")
					return fmt.Errorf("failed to unmarshal item data for key %s: %w", entry.Key(), err)
				}
				items = append(items, item)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to retrieve items from BadgerDB")
		return nil, fmt.Errorf("failed to get items for user %d: %w", userID, err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	log.WithField("item_count", len(items)).Debug("Items retrieved")
	return items, nil
}

// DeleteItem removes an item.
func (r *BadgerRepository) DeleteItem(ctx context.Context, userID int64, id uuid.UUID) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"item_id": id,
	})

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(itemKey(userID, id))
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete item from BadgerDB")
		return fmt.Errorf("failed to delete item %s for user %d: %w", id, userID, err)
	}

	log.Info("Item deleted")
	return nil
}

// ApplyPreview merges preview into the stored item inside one transaction.
func (r *BadgerRepository) ApplyPreview(ctx context.Context, userID int64, id uuid.UUID, preview domain.LinkPreview, at time.Time) (domain.SavedItem, error) {
	log := r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"item_id": id,
	})

	var updated domain.SavedItem
	err := r.db.Update(func(txn *badger.Txn) error {
		key := itemKey(userID, id)
		item, err := getItem(txn, key)
		if err != nil {
			return err
		}
		if item.HasImage() {
			return ErrAlreadyResolved
		}

		item.ApplyPreview(preview, at)
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		if err := txn.SetEntry(badger.NewEntry(key, data)); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyResolved) && !errors.Is(err, ErrNotFound) {
			log.WithError(err).Error("Failed to apply preview")
		}
		return domain.SavedItem{}, fmt.Errorf("failed to apply preview to item %s: %w", id, err)
	}

	log.WithFields(logrus.Fields{
		"platform":  updated.Platform,
		"has_image": updated.HasImage(),
	}).Info("Preview applied")
	return updated, nil
}

// RunGC reclaims value log space every interval until ctx is done.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Info("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: no rewrite needed")
			case errors.Is(err, badger.ErrDBClosed):
				return
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Info("Stopping BadgerDB GC routine")
			return
		}
	}
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
