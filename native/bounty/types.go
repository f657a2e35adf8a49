package bounty

import (
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// BountyStatus represents the lifecycle states of a bounty record.
type BountyStatus uint8

const (
	BountyOpen BountyStatus = iota
	BountySubmitted
	BountyApproved
	BountyClaimed
	BountyCancelled
)

// Valid reports whether the status value is within the supported range.
func (s BountyStatus) Valid() bool {
	switch s {
	case BountyOpen, BountySubmitted, BountyApproved, BountyClaimed, BountyCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s BountyStatus) Terminal() bool {
	return s == BountyClaimed || s == BountyCancelled
}

func (s BountyStatus) String() string {
	switch s {
	case BountyOpen:
		return "open"
	case BountySubmitted:
		return "submitted"
	case BountyApproved:
		return "approved"
	case BountyClaimed:
		return "claimed"
	case BountyCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SubmissionStatus tracks the review state of a single submission.
type SubmissionStatus uint8

const (
	SubmissionPending SubmissionStatus = iota
	SubmissionApproved
	SubmissionRejected
	SubmissionDisputed
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected, SubmissionDisputed:
		return true
	default:
		return false
	}
}

func (s SubmissionStatus) String() string {
	switch s {
	case SubmissionPending:
		return "pending"
	case SubmissionApproved:
		return "approved"
	case SubmissionRejected:
		return "rejected"
	case SubmissionDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// VoteType is the last recorded choice of a voter on a submission.
type VoteType uint8

const (
	VoteNone VoteType = iota
	VoteUp
	VoteDown
)

func (v VoteType) Valid() bool {
	switch v {
	case VoteNone, VoteUp, VoteDown:
		return true
	default:
		return false
	}
}

// Upper bounds for variable-length fields, enforced at write time so a record
// always fits its persisted layout.
const (
	MaxReportURIBytes    = 100
	MaxContentRefBytes   = 100
	MaxDescriptionBytes  = 512
	MaxSubmissionIDBytes = 64
)

// Bounty is the canonical per-bounty state machine record. Amount never
// changes after creation; WinnersSelected never exceeds WinnersQuota.
type Bounty struct {
	ID              [32]byte
	Creator         [20]byte
	Hunter          [20]byte
	HunterSet       bool
	Amount          *big.Int
	Deadline        int64
	CreatedAt       int64
	ReportURI       string
	WinnersQuota    uint8
	WinnersSelected uint8
	Status          BountyStatus
	Initialized     bool
}

// Clone returns a deep copy of the bounty so callers can safely mutate the
// copy without affecting the stored instance.
func (b *Bounty) Clone() *Bounty {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeBounty validates and normalises the supplied record, returning a
// cloned instance with a non-nil amount. The original value is not mutated.
func SanitizeBounty(b *Bounty) (*Bounty, error) {
	if b == nil {
		return nil, fmt.Errorf("bounty: nil record")
	}
	clone := b.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("bounty: amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("bounty: invalid status: %d", clone.Status)
	}
	if clone.WinnersQuota == 0 {
		clone.WinnersQuota = 1
	}
	if clone.WinnersSelected > clone.WinnersQuota {
		return nil, fmt.Errorf("bounty: winners selected exceeds quota")
	}
	if len(clone.ReportURI) > MaxReportURIBytes {
		return nil, fmt.Errorf("bounty: report reference exceeds %d bytes", MaxReportURIBytes)
	}
	return clone, nil
}

// Submission is one unit of work recorded against an open bounty. A
// submission counts as initialized once its ID is non-empty; records are
// never deleted.
type Submission struct {
	ID           string
	Bounty       [32]byte
	Author       [20]byte
	Description  string
	ContentRef   string
	Severity     uint8
	Upvotes      uint64
	Downvotes    uint64
	Status       SubmissionStatus
	PayoutAmount *big.Int
	IsWinner     bool
	CreatedAt    int64
}

// Initialized reports whether the record has been written by a real
// submission rather than being a zero value.
func (s *Submission) Initialized() bool {
	return s != nil && s.ID != ""
}

func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	clone := *s
	if s.PayoutAmount != nil {
		clone.PayoutAmount = new(big.Int).Set(s.PayoutAmount)
	}
	return &clone
}

// SanitizeSubmission validates and normalises the supplied record. Payout
// amounts are present if and only if the submission is a winner.
func SanitizeSubmission(s *Submission) (*Submission, error) {
	if s == nil {
		return nil, fmt.Errorf("bounty: nil submission")
	}
	clone := s.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if len(clone.ID) > MaxSubmissionIDBytes {
		return nil, fmt.Errorf("bounty: submission id exceeds %d bytes", MaxSubmissionIDBytes)
	}
	if len(clone.ContentRef) > MaxContentRefBytes {
		return nil, fmt.Errorf("bounty: content reference exceeds %d bytes", MaxContentRefBytes)
	}
	if len(clone.Description) > MaxDescriptionBytes {
		return nil, fmt.Errorf("bounty: description exceeds %d bytes", MaxDescriptionBytes)
	}
	if clone.Severity > 5 {
		return nil, fmt.Errorf("bounty: severity out of range: %d", clone.Severity)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("bounty: invalid submission status: %d", clone.Status)
	}
	if clone.IsWinner != (clone.PayoutAmount != nil) {
		return nil, fmt.Errorf("bounty: payout amount must be set exactly for winners")
	}
	if clone.PayoutAmount != nil && clone.PayoutAmount.Sign() < 0 {
		return nil, fmt.Errorf("bounty: payout amount must be non-negative")
	}
	return clone, nil
}

// Vote is the single live vote record per (voter, submission) pair. Casting a
// new vote overwrites the record in place.
type Vote struct {
	Voter      [20]byte
	Submission [32]byte
	Bounty     [32]byte
	Choice     VoteType
	Timestamp  int64
}

func (v *Vote) Clone() *Vote {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// Deterministic identifier derivation. Every sub-record of a bounty is
// locatable from its parent identifiers alone, with no side lookup table.
var (
	bountySeedTag     = []byte("bounty")
	vaultSeedTag      = []byte("bounty/vault")
	submissionSeedTag = []byte("bounty/submission")
	voteSeedTag       = []byte("bounty/vote")
)

// BountyID derives the record identifier from the creator address and a
// caller-chosen seed.
func BountyID(creator [20]byte, seed []byte) [32]byte {
	return ethcrypto.Keccak256Hash(bountySeedTag, creator[:], seed)
}

// VaultAddress derives the custodial pool address holding a bounty's locked
// value. The address is a pure function of the bounty identity so an
// attacker cannot substitute an arbitrary account as the escrow.
func VaultAddress(id [32]byte) [20]byte {
	hash := ethcrypto.Keccak256(vaultSeedTag, id[:])
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// SubmissionKey derives the storage key for a submission record.
func SubmissionKey(bountyID [32]byte, author [20]byte, submissionID string) [32]byte {
	return ethcrypto.Keccak256Hash(submissionSeedTag, bountyID[:], author[:], []byte(submissionID))
}

// VoteKey derives the storage key for a vote record.
func VoteKey(submissionKey [32]byte, voter [20]byte) [32]byte {
	return ethcrypto.Keccak256Hash(voteSeedTag, submissionKey[:], voter[:])
}
