package escrow

import (
	"encoding/binary"
	"fmt"
)

var (
	storeCountKey     = []byte("escrow/count")
	storeRecordPrefix = []byte("escrow/record/")
)

func recordKey(id uint64) []byte {
	buf := make([]byte, len(storeRecordPrefix)+8)
	copy(buf, storeRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(storeRecordPrefix):], id)
	return buf
}

// Store is the append-only escrow table. Records are never deleted and ids are
// never reused.
type Store struct {
	state kvStore
}

// NewStore binds a store to a state scope.
func NewStore(state kvStore) *Store {
	return &Store{state: state}
}

// Count returns the number of escrows ever created.
func (s *Store) Count() (uint64, error) {
	if s == nil || s.state == nil {
		return 0, errNilState
	}
	var count uint64
	if _, err := s.state.KVGet(storeCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Append assigns the next id to esc and persists it.
func (s *Store) Append(esc *Escrow) (uint64, error) {
	if esc == nil {
		return 0, fmt.Errorf("escrow store: nil escrow")
	}
	count, err := s.Count()
	if err != nil {
		return 0, err
	}
	esc.ID = count
	if err := s.state.KVPut(recordKey(count), esc); err != nil {
		return 0, err
	}
	if err := s.state.KVPut(storeCountKey, count+1); err != nil {
		return 0, err
	}
	return count, nil
}

// Get loads the escrow with the given id.
func (s *Store) Get(id uint64) (*Escrow, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	var esc Escrow
	ok, err := s.state.KVGet(recordKey(id), &esc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return &esc, nil
}

// Put overwrites an existing escrow record.
func (s *Store) Put(esc *Escrow) error {
	if esc == nil {
		return fmt.Errorf("escrow store: nil escrow")
	}
	count, err := s.Count()
	if err != nil {
		return err
	}
	if esc.ID >= count {
		return fmt.Errorf("%w: id %d", ErrNotFound, esc.ID)
	}
	return s.state.KVPut(recordKey(esc.ID), esc)
}
