package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bountychain/core/events"
	"bountychain/core/state"
	"bountychain/core/types"
	"bountychain/crypto"
	"bountychain/native/bounty"
	"bountychain/storage"
)

const testToken = "test-token"

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech32Address(addr [20]byte) string {
	return crypto.NewAddress(crypto.BountyPrefix, append([]byte(nil), addr[:]...)).String()
}

func newTestServer(t *testing.T) (*httptest.Server, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	buffer := events.NewBuffer(64)
	engine := bounty.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(buffer)

	server := NewServer(engine, buffer, nil, ServerConfig{
		AuthToken:    testToken,
		RateLimitRPS: 1_000,
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, manager
}

func fund(t *testing.T, manager *state.Manager, addr [20]byte, amount int64) {
	t.Helper()
	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Balance: big.NewInt(amount)}))
}

func rpcCall(t *testing.T, url, token, method string, params interface{}) *RPCResponse {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []interface{}{params},
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded
}

func resultAs(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected RPC error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func createBounty(t *testing.T, ts *httptest.Server, caller [20]byte, seed string, amount int64, quota uint8) *BountyResult {
	t.Helper()
	resp := rpcCall(t, ts.URL, testToken, "bounty_create", map[string]interface{}{
		"caller":   bech32Address(caller),
		"seed":     seed,
		"amount":   big.NewInt(amount).String(),
		"deadline": time.Now().Add(time.Hour).Unix(),
		"quota":    quota,
	})
	result := &BountyResult{}
	resultAs(t, resp, result)
	return result
}

func TestCreateAndGet(t *testing.T) {
	ts, manager := newTestServer(t)
	creator := newTestAddress(0x01)
	fund(t, manager, creator, 1_000)

	created := createBounty(t, ts, creator, "audit-1", 400, 1)
	require.Equal(t, "open", created.Status)
	require.Equal(t, "400", created.Amount)
	require.Equal(t, bech32Address(creator), created.Creator)
	require.NotEmpty(t, created.Vault)

	resp := rpcCall(t, ts.URL, "", "bounty_get", map[string]interface{}{"id": created.ID})
	fetched := &BountyResult{}
	resultAs(t, resp, fetched)
	require.Equal(t, created.ID, fetched.ID)

	resp = rpcCall(t, ts.URL, "", "bounty_poolBalance", map[string]interface{}{"id": created.ID})
	var pool map[string]string
	resultAs(t, resp, &pool)
	require.Equal(t, "400", pool["balance"])
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	ts, manager := newTestServer(t)
	creator := newTestAddress(0x01)
	fund(t, manager, creator, 1_000)

	resp := rpcCall(t, ts.URL, "", "bounty_create", map[string]interface{}{
		"caller":   bech32Address(creator),
		"seed":     "audit-1",
		"amount":   "400",
		"deadline": time.Now().Add(time.Hour).Unix(),
		"quota":    1,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = rpcCall(t, ts.URL, "wrong-token", "bounty_create", map[string]interface{}{
		"caller": bech32Address(creator),
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestSingleWinnerFlowOverRPC(t *testing.T) {
	ts, manager := newTestServer(t)
	creator := newTestAddress(0x01)
	hunter := newTestAddress(0x02)
	fund(t, manager, creator, 1_000)

	created := createBounty(t, ts, creator, "audit-1", 400, 1)

	resp := rpcCall(t, ts.URL, testToken, "bounty_submitWork", map[string]interface{}{
		"id": created.ID, "caller": bech32Address(hunter), "report": "ipfs://report",
	})
	submitted := &BountyResult{}
	resultAs(t, resp, submitted)
	require.Equal(t, "submitted", submitted.Status)
	require.Equal(t, bech32Address(hunter), submitted.Hunter)

	resp = rpcCall(t, ts.URL, testToken, "bounty_approve", map[string]interface{}{
		"id": created.ID, "caller": bech32Address(creator),
	})
	approved := &BountyResult{}
	resultAs(t, resp, approved)
	require.Equal(t, "approved", approved.Status)

	resp = rpcCall(t, ts.URL, testToken, "bounty_claim", map[string]interface{}{
		"id": created.ID, "caller": bech32Address(hunter),
	})
	claimed := &BountyResult{}
	resultAs(t, resp, claimed)
	require.Equal(t, "claimed", claimed.Status)

	acc, err := manager.GetAccount(hunter[:])
	require.NoError(t, err)
	require.Equal(t, big.NewInt(400), acc.Balance)
}

func TestEngineErrorsMapToCodes(t *testing.T) {
	ts, manager := newTestServer(t)
	creator := newTestAddress(0x01)
	fund(t, manager, creator, 1_000)

	created := createBounty(t, ts, creator, "audit-1", 400, 1)

	// Cancelling before the deadline is an invalid-state error.
	resp := rpcCall(t, ts.URL, testToken, "bounty_cancel", map[string]interface{}{
		"id": created.ID, "caller": bech32Address(creator),
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidState, resp.Error.Code)

	// Unknown bounty maps to not-found.
	resp = rpcCall(t, ts.URL, "", "bounty_get", map[string]interface{}{
		"id": "0x" + strings.Repeat("0", 64),
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)

	// Malformed address is rejected before reaching the engine.
	resp = rpcCall(t, ts.URL, testToken, "bounty_approve", map[string]interface{}{
		"id": created.ID, "caller": "not-an-address",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestRecordVoteAndSelectWinnerOverRPC(t *testing.T) {
	ts, manager := newTestServer(t)
	creator := newTestAddress(0x01)
	alice := newTestAddress(0x02)
	voter := newTestAddress(0x03)
	fund(t, manager, creator, 1_000)

	created := createBounty(t, ts, creator, "pooled", 1_000, 2)

	resp := rpcCall(t, ts.URL, testToken, "bounty_recordSubmission", map[string]interface{}{
		"id":           created.ID,
		"caller":       bech32Address(alice),
		"submissionId": "finding-1",
		"description":  "reentrancy in payout",
		"contentRef":   "ipfs://finding",
		"severity":     4,
	})
	recorded := &SubmissionResult{}
	resultAs(t, resp, recorded)
	require.Equal(t, "pending", recorded.Status)

	resp = rpcCall(t, ts.URL, testToken, "bounty_vote", map[string]interface{}{
		"id":         created.ID,
		"submission": recorded.Key,
		"caller":     bech32Address(voter),
		"upvote":     true,
	})
	voted := &SubmissionResult{}
	resultAs(t, resp, voted)
	require.Equal(t, uint64(1), voted.Upvotes)

	resp = rpcCall(t, ts.URL, testToken, "bounty_selectWinner", map[string]interface{}{
		"id":         created.ID,
		"caller":     bech32Address(creator),
		"submission": recorded.Key,
	})
	winner := &SubmissionResult{}
	resultAs(t, resp, winner)
	require.True(t, winner.IsWinner)
	require.Equal(t, "500", winner.PayoutAmount)

	acc, err := manager.GetAccount(alice[:])
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), acc.Balance)
}

func TestListEvents(t *testing.T) {
	ts, manager := newTestServer(t)
	creator := newTestAddress(0x01)
	fund(t, manager, creator, 1_000)
	createBounty(t, ts, creator, "audit-1", 400, 1)

	resp := rpcCall(t, ts.URL, "", "bounty_listEvents", map[string]interface{}{
		"prefix": "bounty.",
		"limit":  10,
	})
	var entries []events.BufferEntry
	resultAs(t, resp, &entries)
	require.NotEmpty(t, entries)
	require.Equal(t, bounty.EventTypeBountyCreated, entries[0].Type)
}

func TestMethodNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := rpcCall(t, ts.URL, "", "bounty_unknown", map[string]interface{}{})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}
