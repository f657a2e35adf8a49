package bounty

import (
	"bytes"
	"errors"
	"math/big"
	"time"

	"bountychain/core/events"
	"bountychain/core/types"
)

var errNilState = errors.New("bounty engine: state not configured")

// autoReleaseWindow is the delay after creation before anyone may force
// payment of a submitted, unreviewed bounty to its hunter.
const autoReleaseWindow = int64(7 * 24 * time.Hour / time.Second)

type engineState interface {
	BountyPut(*Bounty) error
	BountyGet(id [32]byte) (*Bounty, bool)
	SubmissionPut(*Submission) error
	SubmissionGet(key [32]byte) (*Submission, bool)
	VotePut(*Vote) error
	VoteGet(key [32]byte) (*Vote, bool)
	PoolCredit(id [32]byte, amt *big.Int) error
	PoolDebit(id [32]byte, amt *big.Int) error
	PoolBalance(id [32]byte) (*big.Int, error)
	BountyVaultAddress(id [32]byte) ([20]byte, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine wires the bounty business logic with external state and event
// emitters. All mutations are fail-closed: any error leaves stored records
// untouched from the caller's perspective.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a bounty engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt moduleEvent) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// The lifecycle gate for every operation lives in one table so a reviewer can
// audit reachable transitions in a single place. A bounty in a terminal
// status always reports ErrBountyClosed regardless of the operation.
type statusGate struct {
	allowed []BountyStatus
	err     error
}

const (
	opSubmitWork   = "submit_work"
	opRejectWork   = "reject_work"
	opApprove      = "approve"
	opClaim        = "claim"
	opCancel       = "cancel"
	opAutoRelease  = "auto_release"
	opRecord       = "record_submission"
	opVote         = "vote"
	opSelectWinner = "select_winner"
	opFinalize     = "finalize"
)

var statusGates = map[string]statusGate{
	opSubmitWork:   {allowed: []BountyStatus{BountyOpen}, err: ErrBountyNotOpen},
	opRejectWork:   {allowed: []BountyStatus{BountySubmitted}, err: ErrBountyNotInReview},
	opApprove:      {allowed: []BountyStatus{BountyOpen, BountySubmitted}, err: ErrBountyNotOpen},
	opClaim:        {allowed: []BountyStatus{BountyApproved}, err: ErrBountyNotApproved},
	opCancel:       {allowed: []BountyStatus{BountyOpen}, err: ErrBountyNotOpen},
	opAutoRelease:  {allowed: []BountyStatus{BountySubmitted}, err: ErrBountyNotInReview},
	opRecord:       {allowed: []BountyStatus{BountyOpen}, err: ErrBountyNotOpen},
	opVote:         {allowed: []BountyStatus{BountyOpen}, err: ErrBountyNotOpen},
	opSelectWinner: {allowed: []BountyStatus{BountyOpen, BountyApproved}, err: ErrBountyNotOpen},
	opFinalize:     {allowed: []BountyStatus{BountyOpen, BountyApproved}, err: ErrBountyNotOpen},
}

func requireStatus(op string, b *Bounty) error {
	gate, ok := statusGates[op]
	if !ok {
		return errNilState
	}
	for _, status := range gate.allowed {
		if b.Status == status {
			return nil
		}
	}
	if b.Status.Terminal() {
		return ErrBountyClosed
	}
	return gate.err
}

func (e *Engine) loadBounty(id [32]byte) (*Bounty, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	b, ok := e.state.BountyGet(id)
	if !ok || b == nil || !b.Initialized {
		return nil, ErrBountyNotFound
	}
	return b, nil
}

func (e *Engine) storeBounty(b *Bounty) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.BountyPut(b)
}

// vaultFor resolves the custodial account for a bounty and cross-checks it
// against the deterministic derivation. A mismatch means the state backend is
// pointing at an account the module does not control, so the operation fails
// closed rather than moving funds.
func (e *Engine) vaultFor(id [32]byte) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	vault, err := e.state.BountyVaultAddress(id)
	if err != nil {
		return [20]byte{}, err
	}
	expected := VaultAddress(id)
	if !bytes.Equal(vault[:], expected[:]) {
		return [20]byte{}, ErrInvalidVault
	}
	return vault, nil
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return ErrInvalidAmount
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientPool
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// payFromVault moves amount out of the bounty's custodial account and keeps
// the pool ledger in sync with the vault balance.
func (e *Engine) payFromVault(id [32]byte, recipient [20]byte, amount *big.Int) error {
	vault, err := e.vaultFor(id)
	if err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	balance, err := e.state.PoolBalance(id)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amt) < 0 {
		return ErrInsufficientPool
	}
	if err := e.transfer(vault, recipient, amt); err != nil {
		return err
	}
	return e.state.PoolDebit(id, amt)
}

// Create initialises a bounty, derives its custodial vault and moves the full
// reward amount from the creator into custody. Re-submitting an identical
// definition is idempotent; a colliding identifier with a different
// definition is rejected.
func (e *Engine) Create(creator [20]byte, seed []byte, amount *big.Int, deadline int64, quota uint8) (*Bounty, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()
	if deadline <= now {
		return nil, ErrInvalidDeadline
	}
	if quota == 0 {
		quota = 1
	}
	id := BountyID(creator, seed)
	if existing, ok := e.state.BountyGet(id); ok && existing != nil && existing.Initialized {
		if existing.Creator != creator || existing.Amount.Cmp(amt) != 0 || existing.Deadline != deadline || existing.WinnersQuota != quota {
			return nil, ErrBountyExists
		}
		return existing.Clone(), nil
	}
	vault, err := e.vaultFor(id)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(creator, vault, amt); err != nil {
		return nil, err
	}
	if err := e.state.PoolCredit(id, amt); err != nil {
		return nil, err
	}
	b := &Bounty{
		ID:           id,
		Creator:      creator,
		Amount:       amt,
		Deadline:     deadline,
		CreatedAt:    now,
		WinnersQuota: quota,
		Status:       BountyOpen,
		Initialized:  true,
	}
	if err := e.storeBounty(b); err != nil {
		return nil, err
	}
	e.emit(eventBountyCreated(b, vault))
	return b.Clone(), nil
}

// SubmitWork records a hunter's completed work on a single-winner bounty and
// moves it into review. Only one hunter can hold the submission slot at a
// time.
func (e *Engine) SubmitWork(id [32]byte, hunter [20]byte, reportURI string) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if err := requireStatus(opSubmitWork, b); err != nil {
		return err
	}
	if b.WinnersQuota != 1 {
		return ErrQuotaNotSingle
	}
	if b.HunterSet {
		return ErrHunterAssigned
	}
	if reportURI == "" {
		return ErrReportRequired
	}
	if len(reportURI) > MaxReportURIBytes {
		return ErrReportTooLong
	}
	b.Hunter = hunter
	b.HunterSet = true
	b.ReportURI = reportURI
	b.Status = BountySubmitted
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventWorkSubmitted(b))
	return nil
}

// RejectWork returns a submitted bounty to the open state, releasing the
// hunter slot. Only the creator may reject.
func (e *Engine) RejectWork(id [32]byte, caller [20]byte) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if err := requireStatus(opRejectWork, b); err != nil {
		return err
	}
	if caller != b.Creator {
		return ErrUnauthorizedCreator
	}
	rejected := b.Hunter
	b.Hunter = [20]byte{}
	b.HunterSet = false
	b.ReportURI = ""
	b.Status = BountyOpen
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventWorkRejected(b, rejected))
	return nil
}

// ApproveSubmission marks a hunter's work as accepted, making the reward
// claimable. Only the creator may approve. On a submitted bounty the recorded
// hunter is approved; on an open bounty the creator designates the hunter
// directly, optionally naming the recorded submission being accepted.
func (e *Engine) ApproveSubmission(id [32]byte, caller [20]byte, hunter *[20]byte, submissionID string) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if err := requireStatus(opApprove, b); err != nil {
		return err
	}
	if caller != b.Creator {
		return ErrUnauthorizedCreator
	}
	switch b.Status {
	case BountySubmitted:
		if hunter != nil && *hunter != b.Hunter {
			return ErrSubmissionMismatch
		}
	case BountyOpen:
		if hunter == nil {
			return ErrHunterRequired
		}
		if submissionID != "" {
			sub, ok := e.state.SubmissionGet(SubmissionKey(id, *hunter, submissionID))
			if !ok || !sub.Initialized() {
				return ErrSubmissionNotFound
			}
		}
		b.Hunter = *hunter
		b.HunterSet = true
	}
	b.Status = BountyApproved
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventBountyApproved(b))
	return nil
}

// ClaimBounty pays the full reward from the vault to the approved hunter and
// closes the bounty.
func (e *Engine) ClaimBounty(id [32]byte, caller [20]byte) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if err := requireStatus(opClaim, b); err != nil {
		return err
	}
	if !b.HunterSet || caller != b.Hunter {
		return ErrUnauthorizedHunter
	}
	amount := cloneBigInt(b.Amount)
	if err := e.payFromVault(id, b.Hunter, amount); err != nil {
		return err
	}
	b.Status = BountyClaimed
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventBountyClaimed(b, b.Hunter, amount))
	return nil
}

// CancelBounty refunds the remaining pool to the creator once the deadline
// has strictly passed. Only the creator may cancel.
func (e *Engine) CancelBounty(id [32]byte, caller [20]byte) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if err := requireStatus(opCancel, b); err != nil {
		return err
	}
	if caller != b.Creator {
		return ErrUnauthorizedCreator
	}
	if e.now() <= b.Deadline {
		return ErrDeadlineNotPassed
	}
	return e.cancel(b, false)
}

// CancelBountyEmergency refunds the remaining pool to the creator without
// waiting for the deadline. It is only available while the bounty is open
// and no hunter has been assigned.
func (e *Engine) CancelBountyEmergency(id [32]byte, caller [20]byte) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if err := requireStatus(opCancel, b); err != nil {
		return err
	}
	if caller != b.Creator {
		return ErrUnauthorizedCreator
	}
	if b.HunterSet {
		return ErrHunterAssigned
	}
	return e.cancel(b, true)
}

func (e *Engine) cancel(b *Bounty, emergency bool) error {
	remaining, err := e.state.PoolBalance(b.ID)
	if err != nil {
		return err
	}
	remaining = cloneBigInt(remaining)
	if err := e.payFromVault(b.ID, b.Creator, remaining); err != nil {
		return err
	}
	b.Status = BountyCancelled
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventBountyCancelled(b, remaining, emergency))
	return nil
}

// AutoRelease pays a submitted bounty to its hunter once the review window
// has elapsed without a creator decision. Anyone may trigger it; the payout
// destination is fixed to the recorded hunter.
func (e *Engine) AutoRelease(id [32]byte, caller [20]byte) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if err := requireStatus(opAutoRelease, b); err != nil {
		return err
	}
	if e.now() < b.CreatedAt+autoReleaseWindow {
		return ErrDeadlineNotReached
	}
	amount := cloneBigInt(b.Amount)
	if err := e.payFromVault(id, b.Hunter, amount); err != nil {
		return err
	}
	b.Status = BountyClaimed
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventBountyAutoReleased(b, caller, amount))
	return nil
}

// RecordSubmission registers a competing entry against an open bounty. The
// record is append-only; the same (author, id) pair cannot be recorded twice.
func (e *Engine) RecordSubmission(bountyID [32]byte, author [20]byte, submissionID, description, contentRef string, severity uint8) (*Submission, error) {
	b, err := e.loadBounty(bountyID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(opRecord, b); err != nil {
		return nil, err
	}
	if submissionID == "" || len(submissionID) > MaxSubmissionIDBytes {
		return nil, ErrInvalidSubmissionID
	}
	if len(contentRef) > MaxContentRefBytes {
		return nil, ErrContentRefTooLong
	}
	if len(description) > MaxDescriptionBytes {
		return nil, ErrDescriptionTooLong
	}
	if severity == 0 || severity > 5 {
		return nil, ErrInvalidSeverity
	}
	key := SubmissionKey(bountyID, author, submissionID)
	if existing, ok := e.state.SubmissionGet(key); ok && existing.Initialized() {
		return nil, ErrSubmissionExists
	}
	sub := &Submission{
		ID:          submissionID,
		Bounty:      bountyID,
		Author:      author,
		Description: description,
		ContentRef:  contentRef,
		Severity:    severity,
		Status:      SubmissionPending,
		CreatedAt:   e.now(),
	}
	if err := e.state.SubmissionPut(sub); err != nil {
		return nil, err
	}
	e.emit(eventSubmissionRecorded(sub, key))
	return sub.Clone(), nil
}

// VoteOnSubmission records or replaces the caller's vote on a submission.
// Switching sides first retracts the previous tally entry, flooring at zero,
// then applies the new one. Re-casting the same choice is a no-op.
func (e *Engine) VoteOnSubmission(bountyID, submissionKey [32]byte, voter [20]byte, upvote bool) error {
	b, err := e.loadBounty(bountyID)
	if err != nil {
		return err
	}
	if err := requireStatus(opVote, b); err != nil {
		return err
	}
	sub, ok := e.state.SubmissionGet(submissionKey)
	if !ok || !sub.Initialized() {
		return ErrSubmissionNotFound
	}
	if sub.Bounty != bountyID {
		return ErrSubmissionMismatch
	}
	choice := VoteDown
	if upvote {
		choice = VoteUp
	}
	voteKey := VoteKey(submissionKey, voter)
	prev, hasPrev := e.state.VoteGet(voteKey)
	if hasPrev && prev.Choice == choice {
		return nil
	}
	if hasPrev {
		switch prev.Choice {
		case VoteUp:
			if sub.Upvotes > 0 {
				sub.Upvotes--
			}
		case VoteDown:
			if sub.Downvotes > 0 {
				sub.Downvotes--
			}
		}
	}
	if choice == VoteUp {
		sub.Upvotes++
	} else {
		sub.Downvotes++
	}
	vote := &Vote{
		Voter:      voter,
		Submission: submissionKey,
		Bounty:     bountyID,
		Choice:     choice,
		Timestamp:  e.now(),
	}
	if err := e.state.VotePut(vote); err != nil {
		return err
	}
	if err := e.state.SubmissionPut(sub); err != nil {
		return err
	}
	e.emit(eventSubmissionVoted(sub, submissionKey, voter, choice))
	return nil
}

// SelectWinner marks a submission as a winner and immediately pays it from
// the pool. The per-winner cap is amount divided by the quota; a nil payout
// requests the full cap. Once the quota is met the bounty moves to Approved,
// closing further submissions and votes.
func (e *Engine) SelectWinner(bountyID [32]byte, caller [20]byte, submissionKey [32]byte, payout *big.Int) error {
	b, err := e.loadBounty(bountyID)
	if err != nil {
		return err
	}
	if err := requireStatus(opSelectWinner, b); err != nil {
		return err
	}
	if caller != b.Creator {
		return ErrUnauthorizedCreator
	}
	if b.WinnersSelected >= b.WinnersQuota {
		return ErrWinnersQuotaMet
	}
	sub, ok := e.state.SubmissionGet(submissionKey)
	if !ok || !sub.Initialized() {
		return ErrSubmissionNotFound
	}
	if sub.Bounty != bountyID {
		return ErrSubmissionMismatch
	}
	if sub.IsWinner {
		return ErrAlreadyWinner
	}
	maxPayout := new(big.Int).Div(cloneBigInt(b.Amount), big.NewInt(int64(b.WinnersQuota)))
	amount := maxPayout
	if payout != nil {
		amount = cloneBigInt(payout)
		if amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		if amount.Cmp(maxPayout) > 0 {
			return ErrPayoutExceedsCap
		}
	}
	balance, err := e.state.PoolBalance(bountyID)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientPool
	}
	if err := e.payFromVault(bountyID, sub.Author, amount); err != nil {
		return err
	}
	sub.IsWinner = true
	sub.PayoutAmount = amount
	sub.Status = SubmissionApproved
	b.WinnersSelected++
	if b.WinnersSelected >= b.WinnersQuota {
		b.Status = BountyApproved
	}
	if err := e.state.SubmissionPut(sub); err != nil {
		return err
	}
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventWinnerSelected(sub, submissionKey, amount))
	return nil
}

// FinalizeAndDistributeRemaining closes a pooled bounty and sweeps whatever
// is left in the vault back to the creator. It is available once the quota
// has been filled or the deadline has strictly passed.
func (e *Engine) FinalizeAndDistributeRemaining(bountyID [32]byte, caller [20]byte) error {
	b, err := e.loadBounty(bountyID)
	if err != nil {
		return err
	}
	if err := requireStatus(opFinalize, b); err != nil {
		return err
	}
	if caller != b.Creator {
		return ErrUnauthorizedCreator
	}
	quotaMet := b.WinnersSelected >= b.WinnersQuota
	if !quotaMet && e.now() <= b.Deadline {
		return ErrFinalizeNotReady
	}
	remaining, err := e.state.PoolBalance(bountyID)
	if err != nil {
		return err
	}
	remaining = cloneBigInt(remaining)
	if remaining.Sign() == 0 && !quotaMet {
		return ErrInsufficientPool
	}
	if err := e.payFromVault(bountyID, b.Creator, remaining); err != nil {
		return err
	}
	b.Status = BountyClaimed
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(eventBountyFinalized(b, remaining))
	return nil
}

// Get returns a defensive copy of the bounty record.
func (e *Engine) Get(id [32]byte) (*Bounty, error) {
	b, err := e.loadBounty(id)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// GetSubmission returns a defensive copy of a submission record.
func (e *Engine) GetSubmission(key [32]byte) (*Submission, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sub, ok := e.state.SubmissionGet(key)
	if !ok || !sub.Initialized() {
		return nil, ErrSubmissionNotFound
	}
	return sub.Clone(), nil
}

// PoolBalance reports the pooled balance still held for a bounty.
func (e *Engine) PoolBalance(id [32]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadBounty(id); err != nil {
		return nil, err
	}
	balance, err := e.state.PoolBalance(id)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}
