package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"bountychain/crypto"
	"bountychain/native/bounty"
)

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("invalid address: %w", err)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseHash(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid identifier: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("identifier must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", value)
	}
	return amount, nil
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func addressString(addr [20]byte) string {
	return crypto.NewAddress(crypto.BountyPrefix, append([]byte(nil), addr[:]...)).String()
}

// BountyResult is the JSON view of a bounty record.
type BountyResult struct {
	ID              string `json:"id"`
	Creator         string `json:"creator"`
	Hunter          string `json:"hunter,omitempty"`
	Vault           string `json:"vault"`
	Amount          string `json:"amount"`
	Deadline        int64  `json:"deadline"`
	CreatedAt       int64  `json:"createdAt"`
	ReportURI       string `json:"reportUri,omitempty"`
	WinnersQuota    uint8  `json:"winnersQuota"`
	WinnersSelected uint8  `json:"winnersSelected"`
	Status          string `json:"status"`
}

func newBountyResult(b *bounty.Bounty) *BountyResult {
	out := &BountyResult{
		ID:              "0x" + hex.EncodeToString(b.ID[:]),
		Creator:         addressString(b.Creator),
		Vault:           addressString(bounty.VaultAddress(b.ID)),
		Amount:          b.Amount.String(),
		Deadline:        b.Deadline,
		CreatedAt:       b.CreatedAt,
		ReportURI:       b.ReportURI,
		WinnersQuota:    b.WinnersQuota,
		WinnersSelected: b.WinnersSelected,
		Status:          b.Status.String(),
	}
	if b.HunterSet {
		out.Hunter = addressString(b.Hunter)
	}
	return out
}

// SubmissionResult is the JSON view of a submission record.
type SubmissionResult struct {
	Key          string `json:"key"`
	ID           string `json:"submissionId"`
	Bounty       string `json:"bounty"`
	Author       string `json:"author"`
	Description  string `json:"description,omitempty"`
	ContentRef   string `json:"contentRef,omitempty"`
	Severity     uint8  `json:"severity"`
	Upvotes      uint64 `json:"upvotes"`
	Downvotes    uint64 `json:"downvotes"`
	Status       string `json:"status"`
	IsWinner     bool   `json:"isWinner"`
	PayoutAmount string `json:"payoutAmount,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

func newSubmissionResult(s *bounty.Submission) *SubmissionResult {
	key := bounty.SubmissionKey(s.Bounty, s.Author, s.ID)
	out := &SubmissionResult{
		Key:         "0x" + hex.EncodeToString(key[:]),
		ID:          s.ID,
		Bounty:      "0x" + hex.EncodeToString(s.Bounty[:]),
		Author:      addressString(s.Author),
		Description: s.Description,
		ContentRef:  s.ContentRef,
		Severity:    s.Severity,
		Upvotes:     s.Upvotes,
		Downvotes:   s.Downvotes,
		Status:      s.Status.String(),
		IsWinner:    s.IsWinner,
		CreatedAt:   s.CreatedAt,
	}
	if s.PayoutAmount != nil {
		out.PayoutAmount = s.PayoutAmount.String()
	}
	return out
}

func (s *Server) handleCreate(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller   string `json:"caller"`
		Seed     string `json:"seed"`
		Amount   string `json:"amount"`
		Deadline int64  `json:"deadline"`
		Quota    uint8  `json:"quota"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	b, err := s.engine.Create(caller, []byte(params.Seed), amount, params.Deadline, params.Quota)
	s.metrics.ObserveOperation("create", err)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newBountyResult(b))
}

// bountyCallParams covers every method addressed by (bounty id, caller).
type bountyCallParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

func (s *Server) bountyCall(w http.ResponseWriter, req *RPCRequest, method string, call func(id [32]byte, caller [20]byte) error) {
	var params bountyCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	err = call(id, caller)
	s.metrics.ObserveOperation(method, err)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	b, err := s.engine.Get(id)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newBountyResult(b))
}

func (s *Server) handleSubmitWork(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		ID     string `json:"id"`
		Caller string `json:"caller"`
		Report string `json:"report"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	err = s.engine.SubmitWork(id, caller, params.Report)
	s.metrics.ObserveOperation("submit_work", err)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	b, err := s.engine.Get(id)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newBountyResult(b))
}

func (s *Server) handleRejectWork(w http.ResponseWriter, req *RPCRequest) {
	s.bountyCall(w, req, "reject_work", s.engine.RejectWork)
}

func (s *Server) handleApprove(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		ID           string `json:"id"`
		Caller       string `json:"caller"`
		Hunter       string `json:"hunter,omitempty"`
		SubmissionID string `json:"submissionId,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var hunter *[20]byte
	if strings.TrimSpace(params.Hunter) != "" {
		parsed, err := parseAddress(params.Hunter)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		hunter = &parsed
	}
	err = s.engine.ApproveSubmission(id, caller, hunter, params.SubmissionID)
	s.metrics.ObserveOperation("approve", err)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	b, err := s.engine.Get(id)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newBountyResult(b))
}

func (s *Server) handleClaim(w http.ResponseWriter, req *RPCRequest) {
	s.bountyCall(w, req, "claim", s.engine.ClaimBounty)
}

func (s *Server) handleCancel(w http.ResponseWriter, req *RPCRequest) {
	s.bountyCall(w, req, "cancel", s.engine.CancelBounty)
}

func (s *Server) handleCancelEmergency(w http.ResponseWriter, req *RPCRequest) {
	s.bountyCall(w, req, "cancel_emergency", s.engine.CancelBountyEmergency)
}

func (s *Server) handleAutoRelease(w http.ResponseWriter, req *RPCRequest) {
	s.bountyCall(w, req, "auto_release", s.engine.AutoRelease)
}

func (s *Server) handleFinalize(w http.ResponseWriter, req *RPCRequest) {
	s.bountyCall(w, req, "finalize", s.engine.FinalizeAndDistributeRemaining)
}

func (s *Server) handleRecordSubmission(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		ID           string `json:"id"`
		Caller       string `json:"caller"`
		SubmissionID string `json:"submissionId"`
		Description  string `json:"description"`
		ContentRef   string `json:"contentRef"`
		Severity     uint8  `json:"severity"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sub, err := s.engine.RecordSubmission(id, caller, params.SubmissionID, params.Description, params.ContentRef, params.Severity)
	s.metrics.ObserveOperation("record_submission", err)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newSubmissionResult(sub))
}

func (s *Server) handleVote(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		ID         string `json:"id"`
		Submission string `json:"submission"`
		Caller     string `json:"caller"`
		Upvote     bool   `json:"upvote"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	subKey, err := parseHash(params.Submission)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	err = s.engine.VoteOnSubmission(id, subKey, caller, params.Upvote)
	s.metrics.ObserveOperation("vote", err)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	sub, err := s.engine.GetSubmission(subKey)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newSubmissionResult(sub))
}

func (s *Server) handleSelectWinner(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		ID         string `json:"id"`
		Caller     string `json:"caller"`
		Submission string `json:"submission"`
		Payout     string `json:"payout,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	subKey, err := parseHash(params.Submission)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var payout *big.Int
	if strings.TrimSpace(params.Payout) != "" {
		payout, err = parseAmount(params.Payout)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	err = s.engine.SelectWinner(id, caller, subKey, payout)
	s.metrics.ObserveOperation("select_winner", err)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	sub, err := s.engine.GetSubmission(subKey)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newSubmissionResult(sub))
}

func (s *Server) handleGet(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		ID string `json:"id"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	b, err := s.engine.Get(id)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newBountyResult(b))
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Submission string `json:"submission"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	subKey, err := parseHash(params.Submission)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sub, err := s.engine.GetSubmission(subKey)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, newSubmissionResult(sub))
}

func (s *Server) handlePoolBalance(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		ID string `json:"id"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.engine.PoolBalance(id)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"id":      params.ID,
		"balance": balance.String(),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, req *RPCRequest) {
	params := struct {
		Prefix string `json:"prefix"`
		Limit  int    `json:"limit"`
	}{}
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
			return
		}
	}
	if s.buffer == nil {
		writeResult(w, req.ID, []struct{}{})
		return
	}
	writeResult(w, req.ID, s.buffer.List(params.Prefix, params.Limit))
}
