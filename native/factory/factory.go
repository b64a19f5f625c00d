// Package factory deploys sale instances and keeps the platform registry.
// One factory serves one token standard; the deployer collaborator decides how
// a fresh engine is wired to its state, minter and bank.
package factory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"mintgate/core/events"
	"mintgate/native/sale"
)

var (
	ErrUnauthorized   = errors.New("factory: caller is not the factory owner")
	ErrInvalidVariant = errors.New("factory: unknown sale variant")
	ErrEmptyName      = errors.New("factory: collection name required")
	ErrEmptySymbol    = errors.New("factory: collection symbol required")
	ErrZeroSigner     = errors.New("factory: signer required for bot prevention variants")
	ErrNotFound       = errors.New("factory: instance not found")
)

// Record is one registry entry.
type Record struct {
	Address   sale.Address `json:"address"`
	Variant   string       `json:"variant"`
	Name      string       `json:"name"`
	Symbol    string       `json:"symbol"`
	CreatedAt int64        `json:"createdAt"`
}

// State is the registry persistence the factory writes through.
type State interface {
	InstanceCount() (uint64, error)
	InstanceAt(index uint64) (*Record, error)
	InstanceAppend(record *Record) error
}

// Deployer constructs the engine for a freshly derived instance address. It
// owns the wiring of state, minter and bank for that instance.
type Deployer[ID sale.TokenKey] func(address sale.Address, variant sale.Variant) (*sale.Engine[ID], error)

// Factory derives instance addresses, initializes engines and appends registry
// records. Creation is owner gated. Creation and restore are serialized
// against instance lookups, so the factory is safe under concurrent gateway
// requests.
type Factory[ID sale.TokenKey] struct {
	address  sale.Address
	owner    sale.Address
	state    State
	deploy   Deployer[ID]
	settings func(params sale.Params, variant sale.Variant) []sale.Setting[ID]
	emitter  events.Emitter
	nowFn    func() int64

	mu        sync.RWMutex
	instances map[sale.Address]*sale.Engine[ID]
}

// New wires a factory. The settings function converts flat creation params
// into the initial token settings for the standard this factory serves.
func New[ID sale.TokenKey](address, owner sale.Address, state State, deploy Deployer[ID], settings func(sale.Params, sale.Variant) []sale.Setting[ID]) *Factory[ID] {
	return &Factory[ID]{
		address:   address,
		owner:     owner,
		state:     state,
		deploy:    deploy,
		settings:  settings,
		instances: make(map[sale.Address]*sale.Engine[ID]),
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// NewSingleCollection builds a factory for single-collection instances using
// the standard flat-params conversion.
func NewSingleCollection(address, owner sale.Address, state State, deploy Deployer[sale.SingleToken]) *Factory[sale.SingleToken] {
	return New(address, owner, state, deploy, func(params sale.Params, variant sale.Variant) []sale.Setting[sale.SingleToken] {
		return []sale.Setting[sale.SingleToken]{sale.SingleSetting(params, variant)}
	})
}

// SetEmitter configures the event emitter. Nil restores the no-op emitter.
func (f *Factory[ID]) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

// SetNowFunc overrides the clock for deterministic testing.
func (f *Factory[ID]) SetNowFunc(now func() int64) {
	if now == nil {
		f.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	f.nowFn = now
}

// Owner returns the factory owner.
func (f *Factory[ID]) Owner() sale.Address { return f.owner }

// CreateInstance validates the creation parameters, derives the instance
// address, initializes a fresh engine and appends the registry record. The
// caller becomes the instance owner unless params name a different one.
func (f *Factory[ID]) CreateInstance(caller sale.Address, variant sale.Variant, params sale.Params, signer sale.Address) (*sale.Engine[ID], *Record, error) {
	if caller != f.owner {
		return nil, nil, ErrUnauthorized
	}
	if !variant.Valid() {
		return nil, nil, ErrInvalidVariant
	}
	if params.Name == "" {
		return nil, nil, ErrEmptyName
	}
	if params.Symbol == "" {
		return nil, nil, ErrEmptySymbol
	}
	if variant.BotPrevention() && signer == (sale.Address{}) {
		return nil, nil, ErrZeroSigner
	}
	owner := params.Owner
	if owner == (sale.Address{}) {
		owner = caller
	}

	settings := f.settings(params, variant)
	for i := range settings {
		if err := sale.ValidateSetting(&settings[i].Sale, settings[i].Presale, 0); err != nil {
			return nil, nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	count, err := f.state.InstanceCount()
	if err != nil {
		return nil, nil, err
	}
	instanceAddr := DeriveAddress(f.address, count)

	engine, err := f.deploy(instanceAddr, variant)
	if err != nil {
		return nil, nil, err
	}
	identity := sale.Identity{
		Name:    params.Name,
		Symbol:  params.Symbol,
		BaseURI: params.BaseURI,
		Owner:   owner,
		Signer:  signer,
	}
	if err := engine.Initialize(identity, settings); err != nil {
		return nil, nil, err
	}

	record := &Record{
		Address:   instanceAddr,
		Variant:   variant.String(),
		Name:      params.Name,
		Symbol:    params.Symbol,
		CreatedAt: f.nowFn(),
	}
	if err := f.state.InstanceAppend(record); err != nil {
		return nil, nil, err
	}
	f.instances[instanceAddr] = engine
	f.emitter.Emit(events.SaleInstanceCreated{
		Factory:  f.address,
		Instance: instanceAddr,
		Variant:  record.Variant,
		Name:     record.Name,
		Symbol:   record.Symbol,
	})
	return engine, record, nil
}

// Restore rebuilds the live engine map from the registry, for process
// restarts over persistent state. Engines are wired but not re-initialized.
func (f *Factory[ID]) Restore() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.records()
	if err != nil {
		return err
	}
	for _, record := range records {
		if _, ok := f.instances[record.Address]; ok {
			continue
		}
		variant, ok := sale.ParseVariant(record.Variant)
		if !ok {
			return fmt.Errorf("%w: record %x", ErrInvalidVariant, record.Address)
		}
		engine, err := f.deploy(record.Address, variant)
		if err != nil {
			return err
		}
		f.instances[record.Address] = engine
	}
	return nil
}

// Instance returns the live engine for an address deployed by this factory.
func (f *Factory[ID]) Instance(addr sale.Address) (*sale.Engine[ID], error) {
	f.mu.RLock()
	engine, ok := f.instances[addr]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrNotFound, addr)
	}
	return engine, nil
}

// Records returns all registry entries in creation order.
func (f *Factory[ID]) Records() ([]*Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.records()
}

func (f *Factory[ID]) records() ([]*Record, error) {
	count, err := f.state.InstanceCount()
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, count)
	for i := uint64(0); i < count; i++ {
		record, err := f.state.InstanceAt(i)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeriveAddress computes a deterministic instance address from the factory
// address and its creation counter.
func DeriveAddress(factory sale.Address, nonce uint64) sale.Address {
	payload := make([]byte, 0, len(factory)+8)
	payload = append(payload, factory[:]...)
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(nonce)
		nonce >>= 8
	}
	payload = append(payload, buf[:]...)
	digest := ethcrypto.Keccak256(payload)
	var addr sale.Address
	copy(addr[:], digest[12:])
	return addr
}
