// Package salestate persists instance sale state and the factory registry in
// a key-value database. Entries are JSON encoded under instance-prefixed keys
// so any number of instances share one database without overlap.
package salestate

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"mintgate/native/factory"
	"mintgate/native/sale"
	"mintgate/storage"
)

// Store implements sale.State for one instance address on top of a shared
// database.
type Store[ID sale.TokenKey] struct {
	db       storage.Database
	instance sale.Address
}

// New scopes a store to an instance address.
func New[ID sale.TokenKey](db storage.Database, instance sale.Address) *Store[ID] {
	return &Store[ID]{db: db, instance: instance}
}

func (s *Store[ID]) key(parts ...string) []byte {
	key := "sale/" + hex.EncodeToString(s.instance[:])
	for _, p := range parts {
		key += "/" + p
	}
	return []byte(key)
}

func tokenPart[ID sale.TokenKey](token ID) string {
	b := token.Bytes()
	if len(b) == 0 {
		return "_"
	}
	return hex.EncodeToString(b)
}

func (s *Store[ID]) getJSON(key []byte, out any) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("salestate: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store[ID]) putJSON(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("salestate: encode %s: %w", key, err)
	}
	return s.db.Put(key, raw)
}

func (s *Store[ID]) IdentityGet() (*sale.Identity, bool, error) {
	var identity sale.Identity
	ok, err := s.getJSON(s.key("identity"), &identity)
	if !ok || err != nil {
		return nil, false, err
	}
	return &identity, true, nil
}

func (s *Store[ID]) IdentityPut(identity *sale.Identity) error {
	return s.putJSON(s.key("identity"), identity)
}

func (s *Store[ID]) SaleConfigGet(token ID) (*sale.SaleConfig, bool, error) {
	var cfg sale.SaleConfig
	ok, err := s.getJSON(s.key("config", tokenPart(token)), &cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (s *Store[ID]) SaleConfigPut(token ID, cfg *sale.SaleConfig) error {
	return s.putJSON(s.key("config", tokenPart(token)), cfg)
}

func (s *Store[ID]) PresaleConfigGet(token ID) (*sale.PresaleConfig, bool, error) {
	var cfg sale.PresaleConfig
	ok, err := s.getJSON(s.key("presale", tokenPart(token)), &cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (s *Store[ID]) PresaleConfigPut(token ID, cfg *sale.PresaleConfig) error {
	return s.putJSON(s.key("presale", tokenPart(token)), cfg)
}

func (s *Store[ID]) TotalMinted(token ID) (uint64, error) {
	return s.getCounter(s.key("minted", tokenPart(token)))
}

func (s *Store[ID]) SetTotalMinted(token ID, minted uint64) error {
	return s.putCounter(s.key("minted", tokenPart(token)), minted)
}

func (s *Store[ID]) PresaleMinted(token ID, buyer sale.Address) (uint64, error) {
	return s.getCounter(s.key("presale-minted", tokenPart(token), hex.EncodeToString(buyer[:])))
}

func (s *Store[ID]) SetPresaleMinted(token ID, buyer sale.Address, minted uint64) error {
	return s.putCounter(s.key("presale-minted", tokenPart(token), hex.EncodeToString(buyer[:])), minted)
}

func (s *Store[ID]) AuthorizationUsed(mark [32]byte) (bool, error) {
	return s.db.Has(s.key("auth", hex.EncodeToString(mark[:])))
}

func (s *Store[ID]) SetAuthorizationUsed(mark [32]byte, used bool) error {
	key := s.key("auth", hex.EncodeToString(mark[:]))
	if used {
		return s.db.Put(key, []byte{1})
	}
	return s.db.Delete(key)
}

func (s *Store[ID]) getCounter(key []byte) (uint64, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("salestate: malformed counter at %s", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Store[ID]) putCounter(key []byte, value uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	return s.db.Put(key, buf[:])
}

// Registry implements factory.State on top of the shared database.
type Registry struct {
	db     storage.Database
	prefix string
}

// NewRegistry scopes a registry to a factory name, usually the token standard
// it serves.
func NewRegistry(db storage.Database, name string) *Registry {
	return &Registry{db: db, prefix: "factory/" + name}
}

func (r *Registry) countKey() []byte {
	return []byte(r.prefix + "/count")
}

func (r *Registry) recordKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s/record/%016x", r.prefix, index))
}

func (r *Registry) InstanceCount() (uint64, error) {
	raw, err := r.db.Get(r.countKey())
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("salestate: malformed registry count")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (r *Registry) InstanceAt(index uint64) (*factory.Record, error) {
	raw, err := r.db.Get(r.recordKey(index))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: index %d", factory.ErrNotFound, index)
	}
	if err != nil {
		return nil, err
	}
	var record factory.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("salestate: decode registry record %d: %w", index, err)
	}
	return &record, nil
}

func (r *Registry) InstanceAppend(record *factory.Record) error {
	count, err := r.InstanceCount()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("salestate: encode registry record: %w", err)
	}
	if err := r.db.Put(r.recordKey(count), raw); err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count+1)
	return r.db.Put(r.countKey(), buf[:])
}
