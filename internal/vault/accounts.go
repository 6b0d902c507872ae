package vault

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Account is the stored form of one address
type Account struct {
	Owner solana.PublicKey
	Data  []byte
}

func (a Account) clone() Account {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return Account{Owner: a.Owner, Data: data}
}

// AccountStore is implemented by whatever persists vault accounts.
// Commit must apply every write or none.
type AccountStore interface {
	GetAccount(key solana.PublicKey) (Account, bool)
	Commit(writes map[solana.PublicKey]Account) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[solana.PublicKey]Account)}
}

func (s *MemoryStore) GetAccount(key solana.PublicKey) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[key]
	if !ok {
		return Account{}, false
	}
	return acc.clone(), true
}

func (s *MemoryStore) Commit(writes map[solana.PublicKey]Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, acc := range writes {
		s.accounts[key] = acc.clone()
	}
	return nil
}

// Snapshot copies every account, tests compare snapshots to check a failed instruction left no trace
func (s *MemoryStore) Snapshot() map[solana.PublicKey]Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[solana.PublicKey]Account, len(s.accounts))
	for key, acc := range s.accounts {
		out[key] = acc.clone()
	}
	return out
}

// accountTxn stages writes of one instruction on top of the store
type accountTxn struct {
	store  AccountStore
	metas  map[solana.PublicKey]*solana.AccountMeta
	writes map[solana.PublicKey]Account
}

func newAccountTxn(store AccountStore, metas []*solana.AccountMeta) *accountTxn {
	txn := &accountTxn{
		store:  store,
		metas:  make(map[solana.PublicKey]*solana.AccountMeta, len(metas)),
		writes: make(map[solana.PublicKey]Account),
	}
	for _, m := range metas {
		if prev, ok := txn.metas[m.PublicKey]; ok {
			// duplicated metas merge their privileges like the runtime does
			merged := *prev
			merged.IsSigner = merged.IsSigner || m.IsSigner
			merged.IsWritable = merged.IsWritable || m.IsWritable
			txn.metas[m.PublicKey] = &merged
			continue
		}
		txn.metas[m.PublicKey] = m
	}
	return txn
}

// get returns the staged account, a missing account is reported as system owned and empty
func (t *accountTxn) get(key solana.PublicKey) Account {
	if acc, ok := t.writes[key]; ok {
		return acc.clone()
	}
	if acc, ok := t.store.GetAccount(key); ok {
		return acc
	}
	return Account{Owner: solana.SystemProgramID}
}

func (t *accountTxn) put(key solana.PublicKey, acc Account) error {
	meta, ok := t.metas[key]
	if !ok || !meta.IsWritable {
		return newError(CodeAccountNotWritable, "%s", key)
	}
	t.writes[key] = acc.clone()
	return nil
}

func (t *accountTxn) commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	return t.store.Commit(t.writes)
}
