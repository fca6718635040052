package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkstash/internal/domain"
)

// SerialRepository runs every mutation of the wrapped repository on a single
// goroutine, in submission order. Reads go straight to the wrapped
// repository. SerialRepository is safe for concurrent use.
type SerialRepository struct {
	inner  Repository
	ops    chan func()
	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
	log    logrus.FieldLogger
}

// NewSerialRepository starts the writer goroutine. Close stops it and closes
// inner.
func NewSerialRepository(inner Repository, logger logrus.FieldLogger) *SerialRepository {
	r := &SerialRepository{
		inner: inner,
		ops:   make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   logger.WithField("component", "serial_repository"),
	}
	go r.loop()
	return r
}

func (r *SerialRepository) loop() {
	defer close(r.done)
	for {
		select {
		case op := <-r.ops:
			op()
		case <-r.quit:
			return
		}
	}
}

// do hands fn to the writer goroutine and waits for its result. Once the
// writer has accepted fn it always runs to completion.
func (r *SerialRepository) do(ctx context.Context, fn func() error) error {
	if r.closed.Load() {
		return ErrClosed
	}

	errc := make(chan error, 1)
	select {
	case r.ops <- func() { errc <- fn() }:
	case <-r.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// SaveItem implements Repository.
func (r *SerialRepository) SaveItem(ctx context.Context, item domain.SavedItem) error {
	return r.do(ctx, func() error {
		return r.inner.SaveItem(ctx, item)
	})
}

// DeleteItem implements Repository.
func (r *SerialRepository) DeleteItem(ctx context.Context, userID int64, id uuid.UUID) error {
	return r.do(ctx, func() error {
		return r.inner.DeleteItem(ctx, userID, id)
	})
}

// ApplyPreview implements Repository.
func (r *SerialRepository) ApplyPreview(ctx context.Context, userID int64, id uuid.UUID, preview domain.LinkPreview, at time.Time) (domain.SavedItem, error) {
	var updated domain.SavedItem
	err := r.do(ctx, func() error {
		var err error
		updated, err = r.inner.ApplyPreview(ctx, userID, id, preview, at)
		return err
	})
	return updated, err
}

// GetItem implements Repository.
func (r *SerialRepository) GetItem(ctx context.Context, userID int64, id uuid.UUID) (domain.SavedItem, error) {
	return r.inner.GetItem(ctx, userID, id)
}

// FindItem implements Repository.
func (r *SerialRepository) FindItem(ctx context.Context, userID int64, idPrefix string) (domain.SavedItem, error) {
	return r.inner.FindItem(ctx, userID, idPrefix)
}

// GetItemsByUser implements Repository.
func (r *SerialRepository) GetItemsByUser(ctx context.Context, userID int64) ([]domain.SavedItem, error) {
	return r.inner.GetItemsByUser(ctx, userID)
}

// Close stops the writer goroutine and closes the wrapped repository.
// Close is safe to call multiple times.
func (r *SerialRepository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.quit)
	<-r.done
	r.log.Debug("Serial writer stopped")
	return r.inner.Close()
}
