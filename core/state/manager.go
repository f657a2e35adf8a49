package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"bountychain/core/types"
	"bountychain/storage"
)

var accountPrefix = []byte("account/")

// Manager mediates all reads and writes of canonical state. Values are RLP
// encoded and stored under keccak-derived keys so record layout changes never
// collide across prefixes.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied key-value database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

// storedAccount mirrors types.Account with RLP-friendly field types.
type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount returns the account record for addr, or a zero-balance account
// when none has been written yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("state: database not configured")
	}
	data, err := m.db.Get(accountKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return &types.Account{Balance: big.NewInt(0)}, nil
		}
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	acc := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		acc.Balance = new(big.Int).Set(stored.Balance)
	}
	return acc, nil
}

// PutAccount persists the account record for addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		if account.Balance.Sign() < 0 {
			return fmt.Errorf("state: negative balance")
		}
		balance = new(big.Int).Set(account.Balance)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

func (m *Manager) loadBigInt(key []byte) (*big.Int, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, fmt.Errorf("state: decode big int: %w", err)
	}
	return value, nil
}

func (m *Manager) writeBigInt(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}
