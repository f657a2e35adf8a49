package bounty

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"bountychain/core/types"
)

// Event type identifiers emitted by the module. Downstream consumers key on
// the "bounty." prefix to subscribe to the whole module.
const (
	EventTypeBountyCreated      = "bounty.created"
	EventTypeWorkSubmitted      = "bounty.submitted"
	EventTypeWorkRejected       = "bounty.rejected"
	EventTypeBountyApproved     = "bounty.approved"
	EventTypeBountyClaimed      = "bounty.claimed"
	EventTypeBountyCancelled    = "bounty.cancelled"
	EventTypeBountyAutoReleased = "bounty.auto_released"
	EventTypeBountyFinalized    = "bounty.finalized"
	EventTypeSubmissionRecorded = "bounty.submission.recorded"
	EventTypeSubmissionVoted    = "bounty.submission.voted"
	EventTypeWinnerSelected     = "bounty.submission.winner"
)

// moduleEvent adapts a typed attribute payload to the events.Emitter
// contract.
type moduleEvent struct {
	payload *types.Event
}

func (e moduleEvent) EventType() string {
	if e.payload == nil {
		return ""
	}
	return e.payload.Type
}

// Event exposes the raw attribute payload for emitters that index it.
func (e moduleEvent) Event() *types.Event {
	return e.payload
}

func newModuleEvent(eventType string, attrs map[string]string) moduleEvent {
	return moduleEvent{payload: &types.Event{Type: eventType, Attributes: attrs}}
}

func hexID(id [32]byte) string { return hex.EncodeToString(id[:]) }

func hexAddr(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func eventBountyCreated(b *Bounty, vault [20]byte) moduleEvent {
	return newModuleEvent(EventTypeBountyCreated, map[string]string{
		"id":       hexID(b.ID),
		"creator":  hexAddr(b.Creator),
		"vault":    hexAddr(vault),
		"amount":   amountString(b.Amount),
		"deadline": fmt.Sprintf("%d", b.Deadline),
		"quota":    fmt.Sprintf("%d", b.WinnersQuota),
	})
}

func eventWorkSubmitted(b *Bounty) moduleEvent {
	return newModuleEvent(EventTypeWorkSubmitted, map[string]string{
		"id":     hexID(b.ID),
		"hunter": hexAddr(b.Hunter),
		"report": b.ReportURI,
	})
}

func eventWorkRejected(b *Bounty, hunter [20]byte) moduleEvent {
	return newModuleEvent(EventTypeWorkRejected, map[string]string{
		"id":     hexID(b.ID),
		"hunter": hexAddr(hunter),
	})
}

func eventBountyApproved(b *Bounty) moduleEvent {
	return newModuleEvent(EventTypeBountyApproved, map[string]string{
		"id":     hexID(b.ID),
		"hunter": hexAddr(b.Hunter),
	})
}

func eventBountyClaimed(b *Bounty, recipient [20]byte, amount *big.Int) moduleEvent {
	return newModuleEvent(EventTypeBountyClaimed, map[string]string{
		"id":        hexID(b.ID),
		"recipient": hexAddr(recipient),
		"amount":    amountString(amount),
	})
}

func eventBountyCancelled(b *Bounty, refunded *big.Int, emergency bool) moduleEvent {
	return newModuleEvent(EventTypeBountyCancelled, map[string]string{
		"id":        hexID(b.ID),
		"creator":   hexAddr(b.Creator),
		"refunded":  amountString(refunded),
		"emergency": fmt.Sprintf("%t", emergency),
	})
}

func eventBountyAutoReleased(b *Bounty, caller [20]byte, amount *big.Int) moduleEvent {
	return newModuleEvent(EventTypeBountyAutoReleased, map[string]string{
		"id":     hexID(b.ID),
		"hunter": hexAddr(b.Hunter),
		"caller": hexAddr(caller),
		"amount": amountString(amount),
	})
}

func eventBountyFinalized(b *Bounty, remainder *big.Int) moduleEvent {
	return newModuleEvent(EventTypeBountyFinalized, map[string]string{
		"id":        hexID(b.ID),
		"creator":   hexAddr(b.Creator),
		"remainder": amountString(remainder),
		"winners":   fmt.Sprintf("%d", b.WinnersSelected),
	})
}

func eventSubmissionRecorded(s *Submission, key [32]byte) moduleEvent {
	return newModuleEvent(EventTypeSubmissionRecorded, map[string]string{
		"bounty":     hexID(s.Bounty),
		"submission": hexID(key),
		"author":     hexAddr(s.Author),
		"severity":   fmt.Sprintf("%d", s.Severity),
	})
}

func eventSubmissionVoted(s *Submission, key [32]byte, voter [20]byte, choice VoteType) moduleEvent {
	up := "false"
	if choice == VoteUp {
		up = "true"
	}
	return newModuleEvent(EventTypeSubmissionVoted, map[string]string{
		"bounty":     hexID(s.Bounty),
		"submission": hexID(key),
		"voter":      hexAddr(voter),
		"upvote":     up,
		"upvotes":    fmt.Sprintf("%d", s.Upvotes),
		"downvotes":  fmt.Sprintf("%d", s.Downvotes),
	})
}

func eventWinnerSelected(s *Submission, key [32]byte, payout *big.Int) moduleEvent {
	return newModuleEvent(EventTypeWinnerSelected, map[string]string{
		"bounty":     hexID(s.Bounty),
		"submission": hexID(key),
		"author":     hexAddr(s.Author),
		"payout":     amountString(payout),
	})
}
