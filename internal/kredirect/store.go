package kredirect

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const payloadPrefix = "p:"

// payloadStore keeps the last body received per origin URL together with its
// validators. It lives in memory only and starts empty on every boot.
type payloadStore struct {
	db *leveldb.DB
}

func newPayloadStore() (*payloadStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open payload store: %w", err)
	}
	return &payloadStore{db: db}, nil
}

func (s *payloadStore) Close() error {
	return s.db.Close()
}

func (s *payloadStore) Peek(url string) (StoredPayload, bool) {
	b, err := s.db.Get([]byte(payloadPrefix+url), nil)
	if err != nil {
		return StoredPayload{}, false
	}
	var p StoredPayload
	if err := decodeGob(b, &p); err != nil {
		return StoredPayload{}, false
	}
	return p, true
}

func (s *payloadStore) Put(url string, p StoredPayload) error {
	b, err := encodeGob(p)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(payloadPrefix+url), b, nil)
}

func (s *payloadStore) Delete(url string) error {
	return s.db.Delete([]byte(payloadPrefix+url), nil)
}

// Usage returns the number of stored payloads and their total body size.
func (s *payloadStore) Usage() (count int, total uint64) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(payloadPrefix)), nil)
	defer it.Release()
	for it.Next() {
		var p StoredPayload
		if err := decodeGob(it.Value(), &p); err != nil {
			continue
		}
		count++
		total += uint64(len(p.Body))
	}
	return count, total
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
