package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"bountychain/native/bounty"
)

var (
	bountyRecordPrefix     = []byte("bounty/record/")
	bountyPoolPrefix       = []byte("bounty/pool/")
	bountySubmissionPrefix = []byte("bounty/submission/")
	bountyVotePrefix       = []byte("bounty/voterec/")
)

func bountyStorageKey(id [32]byte) []byte {
	buf := make([]byte, len(bountyRecordPrefix)+len(id))
	copy(buf, bountyRecordPrefix)
	copy(buf[len(bountyRecordPrefix):], id[:])
	return ethcrypto.Keccak256(buf)
}

func bountyPoolKey(id [32]byte) []byte {
	buf := make([]byte, len(bountyPoolPrefix)+len(id))
	copy(buf, bountyPoolPrefix)
	copy(buf[len(bountyPoolPrefix):], id[:])
	return ethcrypto.Keccak256(buf)
}

func bountySubmissionStorageKey(key [32]byte) []byte {
	buf := make([]byte, len(bountySubmissionPrefix)+len(key))
	copy(buf, bountySubmissionPrefix)
	copy(buf[len(bountySubmissionPrefix):], key[:])
	return ethcrypto.Keccak256(buf)
}

func bountyVoteStorageKey(key [32]byte) []byte {
	buf := make([]byte, len(bountyVotePrefix)+len(key))
	copy(buf, bountyVotePrefix)
	copy(buf[len(bountyVotePrefix):], key[:])
	return ethcrypto.Keccak256(buf)
}

// RLP has no signed integer support, so timestamps are persisted as big
// integers and converted back on load.
type storedBounty struct {
	ID              [32]byte
	Creator         [20]byte
	Hunter          [20]byte
	HunterSet       bool
	Amount          *big.Int
	Deadline        *big.Int
	CreatedAt       *big.Int
	ReportURI       string
	WinnersQuota    uint8
	WinnersSelected uint8
	Status          uint8
}

func newStoredBounty(b *bounty.Bounty) *storedBounty {
	if b == nil {
		return nil
	}
	amount := big.NewInt(0)
	if b.Amount != nil {
		amount = new(big.Int).Set(b.Amount)
	}
	return &storedBounty{
		ID:              b.ID,
		Creator:         b.Creator,
		Hunter:          b.Hunter,
		HunterSet:       b.HunterSet,
		Amount:          amount,
		Deadline:        big.NewInt(b.Deadline),
		CreatedAt:       big.NewInt(b.CreatedAt),
		ReportURI:       b.ReportURI,
		WinnersQuota:    b.WinnersQuota,
		WinnersSelected: b.WinnersSelected,
		Status:          uint8(b.Status),
	}
}

func (s *storedBounty) toBounty() (*bounty.Bounty, error) {
	if s == nil {
		return nil, fmt.Errorf("bounty: nil storage record")
	}
	out := &bounty.Bounty{
		ID:              s.ID,
		Creator:         s.Creator,
		Hunter:          s.Hunter,
		HunterSet:       s.HunterSet,
		Amount:          big.NewInt(0),
		ReportURI:       s.ReportURI,
		WinnersQuota:    s.WinnersQuota,
		WinnersSelected: s.WinnersSelected,
		Status:          bounty.BountyStatus(s.Status),
		Initialized:     true,
	}
	if s.Amount != nil {
		out.Amount = new(big.Int).Set(s.Amount)
	}
	if s.Deadline != nil {
		out.Deadline = s.Deadline.Int64()
	}
	if s.CreatedAt != nil {
		out.CreatedAt = s.CreatedAt.Int64()
	}
	if !out.Status.Valid() {
		return nil, fmt.Errorf("bounty: invalid stored status %d", s.Status)
	}
	return out, nil
}

type storedSubmission struct {
	ID           string
	Bounty       [32]byte
	Author       [20]byte
	Description  string
	ContentRef   string
	Severity     uint8
	Upvotes      uint64
	Downvotes    uint64
	Status       uint8
	IsWinner     bool
	PayoutAmount *big.Int
	CreatedAt    *big.Int
}

func newStoredSubmission(s *bounty.Submission) *storedSubmission {
	if s == nil {
		return nil
	}
	payout := big.NewInt(0)
	if s.PayoutAmount != nil {
		payout = new(big.Int).Set(s.PayoutAmount)
	}
	return &storedSubmission{
		ID:           s.ID,
		Bounty:       s.Bounty,
		Author:       s.Author,
		Description:  s.Description,
		ContentRef:   s.ContentRef,
		Severity:     s.Severity,
		Upvotes:      s.Upvotes,
		Downvotes:    s.Downvotes,
		Status:       uint8(s.Status),
		IsWinner:     s.IsWinner,
		PayoutAmount: payout,
		CreatedAt:    big.NewInt(s.CreatedAt),
	}
}

func (s *storedSubmission) toSubmission() (*bounty.Submission, error) {
	if s == nil {
		return nil, fmt.Errorf("bounty: nil submission record")
	}
	out := &bounty.Submission{
		ID:          s.ID,
		Bounty:      s.Bounty,
		Author:      s.Author,
		Description: s.Description,
		ContentRef:  s.ContentRef,
		Severity:    s.Severity,
		Upvotes:     s.Upvotes,
		Downvotes:   s.Downvotes,
		Status:      bounty.SubmissionStatus(s.Status),
		IsWinner:    s.IsWinner,
	}
	if s.IsWinner {
		out.PayoutAmount = big.NewInt(0)
		if s.PayoutAmount != nil {
			out.PayoutAmount = new(big.Int).Set(s.PayoutAmount)
		}
	}
	if s.CreatedAt != nil {
		out.CreatedAt = s.CreatedAt.Int64()
	}
	if !out.Status.Valid() {
		return nil, fmt.Errorf("bounty: invalid stored submission status %d", s.Status)
	}
	return out, nil
}

type storedVote struct {
	Voter      [20]byte
	Submission [32]byte
	Bounty     [32]byte
	Choice     uint8
	Timestamp  *big.Int
}

// BountyPut persists the bounty record after validation.
func (m *Manager) BountyPut(b *bounty.Bounty) error {
	sanitized, err := bounty.SanitizeBounty(b)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(newStoredBounty(sanitized))
	if err != nil {
		return err
	}
	return m.db.Put(bountyStorageKey(sanitized.ID), encoded)
}

// BountyGet loads the bounty record by identifier.
func (m *Manager) BountyGet(id [32]byte) (*bounty.Bounty, bool) {
	data, err := m.db.Get(bountyStorageKey(id))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedBounty)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	record, err := stored.toBounty()
	if err != nil {
		return nil, false
	}
	return record, true
}

// SubmissionPut persists a submission record after validation.
func (m *Manager) SubmissionPut(s *bounty.Submission) error {
	sanitized, err := bounty.SanitizeSubmission(s)
	if err != nil {
		return err
	}
	key := bounty.SubmissionKey(sanitized.Bounty, sanitized.Author, sanitized.ID)
	encoded, err := rlp.EncodeToBytes(newStoredSubmission(sanitized))
	if err != nil {
		return err
	}
	return m.db.Put(bountySubmissionStorageKey(key), encoded)
}

// SubmissionGet loads a submission record by its derived key.
func (m *Manager) SubmissionGet(key [32]byte) (*bounty.Submission, bool) {
	data, err := m.db.Get(bountySubmissionStorageKey(key))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedSubmission)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	record, err := stored.toSubmission()
	if err != nil {
		return nil, false
	}
	return record, true
}

// VotePut persists the single live vote record for a (voter, submission)
// pair, overwriting any previous choice.
func (m *Manager) VotePut(v *bounty.Vote) error {
	if v == nil {
		return fmt.Errorf("bounty: nil vote")
	}
	if !v.Choice.Valid() {
		return fmt.Errorf("bounty: invalid vote choice %d", v.Choice)
	}
	key := bounty.VoteKey(v.Submission, v.Voter)
	encoded, err := rlp.EncodeToBytes(&storedVote{
		Voter:      v.Voter,
		Submission: v.Submission,
		Bounty:     v.Bounty,
		Choice:     uint8(v.Choice),
		Timestamp:  big.NewInt(v.Timestamp),
	})
	if err != nil {
		return err
	}
	return m.db.Put(bountyVoteStorageKey(key), encoded)
}

// VoteGet loads the vote record by its derived key.
func (m *Manager) VoteGet(key [32]byte) (*bounty.Vote, bool) {
	data, err := m.db.Get(bountyVoteStorageKey(key))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedVote)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	record := &bounty.Vote{
		Voter:      stored.Voter,
		Submission: stored.Submission,
		Bounty:     stored.Bounty,
		Choice:     bounty.VoteType(stored.Choice),
	}
	if stored.Timestamp != nil {
		record.Timestamp = stored.Timestamp.Int64()
	}
	if !record.Choice.Valid() {
		return nil, false
	}
	return record, true
}

// BountyVaultAddress resolves the custodial account for a bounty.
func (m *Manager) BountyVaultAddress(id [32]byte) ([20]byte, error) {
	return bounty.VaultAddress(id), nil
}

// PoolCredit increases the pooled balance ledger for a bounty. It tracks the
// funds the module holds in the bounty's vault account; callers move the
// account balances separately.
func (m *Manager) PoolCredit(id [32]byte, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("bounty: invalid pool credit amount")
	}
	current, err := m.loadBigInt(bountyPoolKey(id))
	if err != nil {
		return err
	}
	return m.writeBigInt(bountyPoolKey(id), new(big.Int).Add(current, amt))
}

// PoolDebit decreases the pooled balance ledger for a bounty.
func (m *Manager) PoolDebit(id [32]byte, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("bounty: invalid pool debit amount")
	}
	current, err := m.loadBigInt(bountyPoolKey(id))
	if err != nil {
		return err
	}
	if current.Cmp(amt) < 0 {
		return fmt.Errorf("bounty: pool debit exceeds balance")
	}
	return m.writeBigInt(bountyPoolKey(id), new(big.Int).Sub(current, amt))
}

// PoolBalance reports the pooled balance held for a bounty.
func (m *Manager) PoolBalance(id [32]byte) (*big.Int, error) {
	return m.loadBigInt(bountyPoolKey(id))
}
