package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const envToken = "BOUNTY_RPC_TOKEN"

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data,omitempty"`
	} `json:"error"`
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bounty-cli [flags] <command> [command flags]

Commands:
  create            create a bounty and lock its reward in escrow
  submit-work       submit completed work on a single-winner bounty
  reject-work       return a submitted bounty to the open state
  approve           accept the hunter's submitted work
  claim             pay the reward to the approved hunter
  cancel            cancel an expired bounty and refund the creator
  cancel-emergency  cancel an open bounty before its deadline
  auto-release      force payout of an unreviewed submission
  record            record a competing submission on a pooled bounty
  vote              upvote or downvote a submission
  select-winner     select a winning submission and pay its share
  finalize          sweep the remaining pool back to the creator
  get               fetch a bounty record
  get-submission    fetch a submission record
  pool              show the pooled balance of a bounty
  events            list recent module events

Global flags:
  -rpc <url>        RPC endpoint (default http://localhost:8545)

The %s environment variable supplies the bearer token for
mutating commands.
`, envToken)
	os.Exit(2)
}

func main() {
	rpcURL := flag.String("rpc", "http://localhost:8545", "RPC endpoint")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	method, params, err := buildCall(command, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	result, err := call(*rpcURL, method, params)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(pretty.String())
}

func buildCall(command string, args []string) (string, map[string]interface{}, error) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	var (
		id         = fs.String("id", "", "bounty identifier (0x-prefixed hex)")
		caller     = fs.String("caller", "", "caller address (bech32)")
		seed       = fs.String("seed", "", "creation seed")
		amount     = fs.String("amount", "", "reward amount (decimal)")
		deadline   = fs.Int64("deadline", 0, "deadline (unix seconds)")
		quota      = fs.Uint("quota", 1, "winners quota")
		report     = fs.String("report", "", "report reference")
		subID      = fs.String("submission-id", "", "submission identifier")
		desc       = fs.String("description", "", "submission description")
		contentRef = fs.String("content", "", "submission content reference")
		severity   = fs.Uint("severity", 1, "severity (1-5)")
		submission = fs.String("submission", "", "submission key (0x-prefixed hex)")
		hunter     = fs.String("hunter", "", "hunter address (bech32)")
		payout     = fs.String("payout", "", "winner payout (decimal, defaults to amount/quota)")
		upvote     = fs.Bool("up", true, "cast an upvote (false for downvote)")
		prefix     = fs.String("prefix", "bounty.", "event type prefix")
		limit      = fs.Int("limit", 20, "maximum events to return")
	)
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}

	switch command {
	case "create":
		return "bounty_create", map[string]interface{}{
			"caller": *caller, "seed": *seed, "amount": *amount,
			"deadline": *deadline, "quota": *quota,
		}, nil
	case "submit-work":
		return "bounty_submitWork", map[string]interface{}{
			"id": *id, "caller": *caller, "report": *report,
		}, nil
	case "reject-work":
		return "bounty_rejectWork", idCaller(*id, *caller), nil
	case "approve":
		params := idCaller(*id, *caller)
		if *hunter != "" {
			params["hunter"] = *hunter
		}
		if *subID != "" {
			params["submissionId"] = *subID
		}
		return "bounty_approve", params, nil
	case "claim":
		return "bounty_claim", idCaller(*id, *caller), nil
	case "cancel":
		return "bounty_cancel", idCaller(*id, *caller), nil
	case "cancel-emergency":
		return "bounty_cancelEmergency", idCaller(*id, *caller), nil
	case "auto-release":
		return "bounty_autoRelease", idCaller(*id, *caller), nil
	case "record":
		return "bounty_recordSubmission", map[string]interface{}{
			"id": *id, "caller": *caller, "submissionId": *subID,
			"description": *desc, "contentRef": *contentRef, "severity": *severity,
		}, nil
	case "vote":
		return "bounty_vote", map[string]interface{}{
			"id": *id, "submission": *submission, "caller": *caller, "upvote": *upvote,
		}, nil
	case "select-winner":
		params := map[string]interface{}{
			"id": *id, "caller": *caller, "submission": *submission,
		}
		if *payout != "" {
			params["payout"] = *payout
		}
		return "bounty_selectWinner", params, nil
	case "finalize":
		return "bounty_finalize", idCaller(*id, *caller), nil
	case "get":
		return "bounty_get", map[string]interface{}{"id": *id}, nil
	case "get-submission":
		return "bounty_getSubmission", map[string]interface{}{"submission": *submission}, nil
	case "pool":
		return "bounty_poolBalance", map[string]interface{}{"id": *id}, nil
	case "events":
		return "bounty_listEvents", map[string]interface{}{"prefix": *prefix, "limit": *limit}, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", command)
	}
}

func idCaller(id, caller string) map[string]interface{} {
	return map[string]interface{}{"id": id, "caller": caller}
}

func call(url, method string, params map[string]interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{params},
		ID:      1,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(os.Getenv(envToken)); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("invalid RPC response: %s", strings.TrimSpace(string(body)))
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%s (code %d)", decoded.Error.Message, decoded.Error.Code)
	}
	return decoded.Result, nil
}
