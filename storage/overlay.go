package storage

import (
	"errors"
	"sync"
)

var errOverlayClosed = errors.New("storage: overlay already committed or discarded")

// Overlay buffers writes on top of a parent database. Reads see pending
// writes first. Nothing reaches the parent until Commit, which flushes every
// pending write in a single batch; Discard drops them.
type Overlay struct {
	parent Database

	mu      sync.RWMutex
	pending map[string][]byte
	deleted map[string]struct{}
	closed  bool
}

// NewOverlay starts a write scope over parent.
func NewOverlay(parent Database) *Overlay {
	return &Overlay{
		parent:  parent,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errOverlayClosed
	}
	k := string(key)
	delete(o.deleted, k)
	o.pending[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	k := string(key)
	if value, ok := o.pending[k]; ok {
		o.mu.RUnlock()
		return append([]byte(nil), value...), nil
	}
	if _, ok := o.deleted[k]; ok {
		o.mu.RUnlock()
		return nil, ErrNotFound
	}
	o.mu.RUnlock()
	return o.parent.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	k := string(key)
	if _, ok := o.pending[k]; ok {
		o.mu.RUnlock()
		return true, nil
	}
	if _, ok := o.deleted[k]; ok {
		o.mu.RUnlock()
		return false, nil
	}
	o.mu.RUnlock()
	return o.parent.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errOverlayClosed
	}
	k := string(key)
	delete(o.pending, k)
	o.deleted[k] = struct{}{}
	return nil
}

// NewBatch returns a batch that writes into the overlay, not the parent.
func (o *Overlay) NewBatch() Batch {
	return &overlayBatch{overlay: o}
}

// Commit flushes pending writes to the parent in one batch and closes the
// overlay.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errOverlayClosed
	}
	batch := o.parent.NewBatch()
	for _, k := range sortedKeys(o.deleted) {
		batch.Delete([]byte(k))
	}
	for _, k := range sortedKeys(o.pending) {
		batch.Put([]byte(k), o.pending[k])
	}
	if batch.Len() > 0 {
		if err := batch.Write(); err != nil {
			return err
		}
	}
	o.closed = true
	o.pending = nil
	o.deleted = nil
	return nil
}

// Discard drops all pending writes and closes the overlay.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.pending = nil
	o.deleted = nil
}

// Close is a no-op; the parent owns the underlying handle.
func (o *Overlay) Close() error { return nil }

type overlayBatch struct {
	overlay *Overlay
	ops     []memOp
}

func (b *overlayBatch) Put(key []byte, value []byte) {
	b.ops = append(b.ops, memOp{key: string(key), value: append([]byte(nil), value...)})
}

func (b *overlayBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: string(key), delete: true})
}

func (b *overlayBatch) Len() int { return len(b.ops) }

func (b *overlayBatch) Write() error {
	for _, op := range b.ops {
		var err error
		if op.delete {
			err = b.overlay.Delete([]byte(op.key))
		} else {
			err = b.overlay.Put([]byte(op.key), op.value)
		}
		if err != nil {
			return err
		}
	}
	b.ops = nil
	return nil
}
