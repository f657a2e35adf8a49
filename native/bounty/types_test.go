package bounty

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBountyStatusValid(t *testing.T) {
	for _, status := range []BountyStatus{BountyOpen, BountySubmitted, BountyApproved, BountyClaimed, BountyCancelled} {
		require.True(t, status.Valid(), status.String())
	}
	require.False(t, BountyStatus(200).Valid())
	require.Equal(t, "unknown", BountyStatus(200).String())
}

func TestBountyStatusTerminal(t *testing.T) {
	require.True(t, BountyClaimed.Terminal())
	require.True(t, BountyCancelled.Terminal())
	require.False(t, BountyOpen.Terminal())
	require.False(t, BountySubmitted.Terminal())
	require.False(t, BountyApproved.Terminal())
}

func TestBountyClone(t *testing.T) {
	original := &Bounty{
		ID:     BountyID(newTestAddress(0x01), []byte("seed")),
		Amount: big.NewInt(500),
		Status: BountyOpen,
	}
	clone := original.Clone()
	clone.Amount.SetInt64(999)
	require.Equal(t, big.NewInt(500), original.Amount)
}

func TestSanitizeBounty(t *testing.T) {
	base := func() *Bounty {
		return &Bounty{
			Amount:       big.NewInt(100),
			WinnersQuota: 2,
			Status:       BountyOpen,
		}
	}

	sanitized, err := SanitizeBounty(base())
	require.NoError(t, err)
	require.Equal(t, uint8(2), sanitized.WinnersQuota)

	b := base()
	b.WinnersQuota = 0
	sanitized, err = SanitizeBounty(b)
	require.NoError(t, err)
	require.Equal(t, uint8(1), sanitized.WinnersQuota)

	b = base()
	b.Amount = big.NewInt(-1)
	_, err = SanitizeBounty(b)
	require.Error(t, err)

	b = base()
	b.Status = BountyStatus(99)
	_, err = SanitizeBounty(b)
	require.Error(t, err)

	b = base()
	b.WinnersSelected = 3
	_, err = SanitizeBounty(b)
	require.Error(t, err)

	b = base()
	b.ReportURI = strings.Repeat("r", MaxReportURIBytes+1)
	_, err = SanitizeBounty(b)
	require.Error(t, err)
}

func TestSanitizeSubmission(t *testing.T) {
	base := func() *Submission {
		return &Submission{
			ID:       "finding-1",
			Severity: 3,
			Status:   SubmissionPending,
		}
	}

	_, err := SanitizeSubmission(base())
	require.NoError(t, err)

	s := base()
	s.IsWinner = true
	_, err = SanitizeSubmission(s)
	require.Error(t, err)

	s = base()
	s.PayoutAmount = big.NewInt(10)
	_, err = SanitizeSubmission(s)
	require.Error(t, err)

	s = base()
	s.IsWinner = true
	s.PayoutAmount = big.NewInt(10)
	_, err = SanitizeSubmission(s)
	require.NoError(t, err)

	s = base()
	s.Severity = 9
	_, err = SanitizeSubmission(s)
	require.Error(t, err)
}

func TestDerivationsAreDeterministic(t *testing.T) {
	creator := newTestAddress(0x01)
	id := BountyID(creator, []byte("seed"))
	require.Equal(t, id, BountyID(creator, []byte("seed")))
	require.NotEqual(t, id, BountyID(creator, []byte("other")))
	require.NotEqual(t, id, BountyID(newTestAddress(0x02), []byte("seed")))

	vault := VaultAddress(id)
	require.Equal(t, vault, VaultAddress(id))
	require.NotEqual(t, vault, VaultAddress(BountyID(creator, []byte("other"))))

	author := newTestAddress(0x03)
	key := SubmissionKey(id, author, "finding-1")
	require.Equal(t, key, SubmissionKey(id, author, "finding-1"))
	require.NotEqual(t, key, SubmissionKey(id, author, "finding-2"))

	voter := newTestAddress(0x04)
	voteKey := VoteKey(key, voter)
	require.Equal(t, voteKey, VoteKey(key, voter))
	require.NotEqual(t, voteKey, VoteKey(key, newTestAddress(0x05)))
}
