package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bountychain/core/types"
	"bountychain/native/bounty"
	"bountychain/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestAccountRoundTrip(t *testing.T) {
	m := newTestManager(t)
	addr := testAddress(0x01)

	acc, err := m.GetAccount(addr[:])
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), acc.Balance)

	acc.Balance = big.NewInt(12_345)
	acc.Nonce = 7
	require.NoError(t, m.PutAccount(addr[:], acc))

	loaded, err := m.GetAccount(addr[:])
	require.NoError(t, err)
	require.Equal(t, big.NewInt(12_345), loaded.Balance)
	require.Equal(t, uint64(7), loaded.Nonce)
}

func TestPutAccountRejectsNegativeBalance(t *testing.T) {
	m := newTestManager(t)
	addr := testAddress(0x01)
	err := m.PutAccount(addr[:], &types.Account{Balance: big.NewInt(-1)})
	require.Error(t, err)
}

func TestBountyRoundTrip(t *testing.T) {
	m := newTestManager(t)
	creator := testAddress(0x01)
	record := &bounty.Bounty{
		ID:           bounty.BountyID(creator, []byte("seed")),
		Creator:      creator,
		Amount:       big.NewInt(500),
		Deadline:     1_700_000_100,
		CreatedAt:    1_700_000_000,
		ReportURI:    "ipfs://report",
		WinnersQuota: 2,
		Status:       bounty.BountyOpen,
		Initialized:  true,
	}
	require.NoError(t, m.BountyPut(record))

	loaded, ok := m.BountyGet(record.ID)
	require.True(t, ok)
	require.Equal(t, record.Creator, loaded.Creator)
	require.Equal(t, record.Amount, loaded.Amount)
	require.Equal(t, record.Deadline, loaded.Deadline)
	require.Equal(t, record.CreatedAt, loaded.CreatedAt)
	require.Equal(t, record.ReportURI, loaded.ReportURI)
	require.Equal(t, record.WinnersQuota, loaded.WinnersQuota)
	require.Equal(t, record.Status, loaded.Status)
	require.True(t, loaded.Initialized)

	_, ok = m.BountyGet(bounty.BountyID(creator, []byte("missing")))
	require.False(t, ok)
}

func TestSubmissionRoundTrip(t *testing.T) {
	m := newTestManager(t)
	creator := testAddress(0x01)
	author := testAddress(0x02)
	id := bounty.BountyID(creator, []byte("seed"))
	record := &bounty.Submission{
		ID:           "finding-1",
		Bounty:       id,
		Author:       author,
		Description:  "overflow in payout math",
		ContentRef:   "ipfs://finding",
		Severity:     4,
		Upvotes:      2,
		Downvotes:    1,
		Status:       bounty.SubmissionApproved,
		IsWinner:     true,
		PayoutAmount: big.NewInt(250),
		CreatedAt:    1_700_000_000,
	}
	require.NoError(t, m.SubmissionPut(record))

	key := bounty.SubmissionKey(id, author, record.ID)
	loaded, ok := m.SubmissionGet(key)
	require.True(t, ok)
	require.Equal(t, record.ID, loaded.ID)
	require.Equal(t, record.Upvotes, loaded.Upvotes)
	require.Equal(t, record.Downvotes, loaded.Downvotes)
	require.True(t, loaded.IsWinner)
	require.Equal(t, big.NewInt(250), loaded.PayoutAmount)
	require.Equal(t, record.CreatedAt, loaded.CreatedAt)
}

func TestVoteRoundTrip(t *testing.T) {
	m := newTestManager(t)
	creator := testAddress(0x01)
	voter := testAddress(0x03)
	id := bounty.BountyID(creator, []byte("seed"))
	subKey := bounty.SubmissionKey(id, testAddress(0x02), "finding-1")

	record := &bounty.Vote{
		Voter:      voter,
		Submission: subKey,
		Bounty:     id,
		Choice:     bounty.VoteUp,
		Timestamp:  1_700_000_000,
	}
	require.NoError(t, m.VotePut(record))

	loaded, ok := m.VoteGet(bounty.VoteKey(subKey, voter))
	require.True(t, ok)
	require.Equal(t, bounty.VoteUp, loaded.Choice)
	require.Equal(t, record.Timestamp, loaded.Timestamp)

	// Overwriting replaces the live record.
	record.Choice = bounty.VoteDown
	require.NoError(t, m.VotePut(record))
	loaded, ok = m.VoteGet(bounty.VoteKey(subKey, voter))
	require.True(t, ok)
	require.Equal(t, bounty.VoteDown, loaded.Choice)
}

func TestPoolLedger(t *testing.T) {
	m := newTestManager(t)
	id := bounty.BountyID(testAddress(0x01), []byte("seed"))

	balance, err := m.PoolBalance(id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), balance)

	require.NoError(t, m.PoolCredit(id, big.NewInt(1_000)))
	require.NoError(t, m.PoolDebit(id, big.NewInt(400)))

	balance, err = m.PoolBalance(id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(600), balance)

	require.Error(t, m.PoolDebit(id, big.NewInt(601)))
	require.Error(t, m.PoolCredit(id, big.NewInt(-1)))
	require.Error(t, m.PoolDebit(id, nil))
}

func TestBountyVaultAddressMatchesDerivation(t *testing.T) {
	m := newTestManager(t)
	id := bounty.BountyID(testAddress(0x01), []byte("seed"))
	vault, err := m.BountyVaultAddress(id)
	require.NoError(t, err)
	require.Equal(t, bounty.VaultAddress(id), vault)
}
