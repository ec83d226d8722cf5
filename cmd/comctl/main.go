// comctl drives a running agentd node from the command line: proposing
// commitments, logging events, requesting transitions, and inspecting the
// calling agent's claims and reputation.
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Sensorica/nondominium-sub002/pkg/attest"
)

const usage = `usage: comctl <command> [flags]

commands:
  commit propose    --action A --provider AG --receiver AG [--resource R] [--due RFC3339] [--note N]
  commit accept     --id CMT
  event log         --action A --provider AG --receiver AG [--resource R] [--fulfills CMT] [--receipts --score S]
  transition request --file REQUEST_JSON
  claims list       [--type T] [--from RFC3339] [--to RFC3339] [--limit N]
  claims countersign --id CLM
  claims validate   --id CLM
  reputation        --start RFC3339 --end RFC3339 [--type T]
  key gen

environment: NODE_URL (default http://localhost:8088), NODE_TOKEN`

func main() {
	if len(os.Args) < 2 {
		fail(usage)
	}
	switch os.Args[1] {
	case "commit":
		runCommit(os.Args[2:])
	case "event":
		runEvent(os.Args[2:])
	case "transition":
		runTransition(os.Args[2:])
	case "claims":
		runClaims(os.Args[2:])
	case "reputation":
		runReputation(os.Args[2:])
	case "key":
		runKey(os.Args[2:])
	default:
		fail(usage)
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

type node struct {
	base  string
	token string
}

func nodeFromEnv() node {
	base := os.Getenv("NODE_URL")
	if base == "" {
		base = "http://localhost:8088"
	}
	return node{base: strings.TrimRight(base, "/"), token: os.Getenv("NODE_TOKEN")}
}

func (n node) call(method, path string, body any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fail("encode request: " + err.Error())
		}
	}
	req, err := http.NewRequest(method, n.base+path, &buf)
	if err != nil {
		fail(err.Error())
	}
	req.Header.Set("content-type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail(err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fail(err.Error())
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	fmt.Println(string(raw))
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

func runCommit(args []string) {
	if len(args) < 1 {
		fail(usage)
	}
	switch args[0] {
	case "propose":
		fs := flag.NewFlagSet("commit propose", flag.ExitOnError)
		action := fs.String("action", "", "action kind")
		provider := fs.String("provider", "", "providing agent")
		receiver := fs.String("receiver", "", "receiving agent")
		resource := fs.String("resource", "", "resource ref")
		due := fs.String("due", "", "due date, RFC 3339")
		note := fs.String("note", "", "free-form note")
		_ = fs.Parse(args[1:])
		body := map[string]any{
			"action": *action, "provider": *provider, "receiver": *receiver,
			"resource_ref": *resource, "note": *note,
		}
		if *due != "" {
			ts, err := time.Parse(time.RFC3339, *due)
			if err != nil {
				fail("--due must be RFC 3339")
			}
			body["due_date"] = ts
		}
		nodeFromEnv().call(http.MethodPost, "/v1/commitments", body)
	case "accept":
		fs := flag.NewFlagSet("commit accept", flag.ExitOnError)
		id := fs.String("id", "", "commitment id")
		_ = fs.Parse(args[1:])
		if *id == "" {
			fail("--id is required")
		}
		nodeFromEnv().call(http.MethodPost, "/v1/commitments/"+*id+":accept", nil)
	default:
		fail(usage)
	}
}

func runEvent(args []string) {
	if len(args) < 1 || args[0] != "log" {
		fail(usage)
	}
	fs := flag.NewFlagSet("event log", flag.ExitOnError)
	action := fs.String("action", "", "action kind")
	provider := fs.String("provider", "", "providing agent")
	receiver := fs.String("receiver", "", "receiving agent")
	resource := fs.String("resource", "", "resource ref")
	fulfills := fs.String("fulfills", "", "commitment id this event fulfills")
	process := fs.String("process", "", "process type for Work events")
	receipts := fs.Bool("receipts", false, "mint the participation claim pair")
	score := fs.Float64("score", 1.0, "uniform metric score for both sides, in [0,1]")
	note := fs.String("note", "", "free-form note")
	_ = fs.Parse(args[1:])

	body := map[string]any{
		"action": *action, "provider": *provider, "receiver": *receiver,
		"resource_ref": *resource, "fulfills": *fulfills, "note": *note,
	}
	if *process != "" {
		body["process_type"] = *process
	}
	if *receipts {
		m := map[string]any{
			"timeliness": *score, "quality": *score, "reliability": *score,
			"communication": *score, "overall_satisfaction": *score,
		}
		body["generate_receipts"] = true
		body["provider_metrics"] = m
		body["receiver_metrics"] = m
	}
	nodeFromEnv().call(http.MethodPost, "/v1/events", body)
}

func runTransition(args []string) {
	if len(args) < 1 || args[0] != "request" {
		fail(usage)
	}
	fs := flag.NewFlagSet("transition request", flag.ExitOnError)
	file := fs.String("file", "", "path to transition request json")
	_ = fs.Parse(args[1:])
	if *file == "" {
		fail("--file is required")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		fail("read request: " + err.Error())
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		fail("parse request: " + err.Error())
	}
	nodeFromEnv().call(http.MethodPost, "/v1/transitions:request", body)
}

func runClaims(args []string) {
	if len(args) < 1 {
		fail(usage)
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("claims list", flag.ExitOnError)
		typ := fs.String("type", "", "claim type filter")
		from := fs.String("from", "", "window start, RFC 3339")
		to := fs.String("to", "", "window end, RFC 3339")
		limit := fs.Int("limit", 0, "maximum claims")
		_ = fs.Parse(args[1:])
		q := url.Values{}
		if *typ != "" {
			q.Set("type", *typ)
		}
		if *from != "" {
			q.Set("from", *from)
		}
		if *to != "" {
			q.Set("to", *to)
		}
		if *limit > 0 {
			q.Set("limit", fmt.Sprint(*limit))
		}
		path := "/v1/claims"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		nodeFromEnv().call(http.MethodGet, path, nil)
	case "countersign":
		fs := flag.NewFlagSet("claims countersign", flag.ExitOnError)
		id := fs.String("id", "", "claim id")
		_ = fs.Parse(args[1:])
		if *id == "" {
			fail("--id is required")
		}
		nodeFromEnv().call(http.MethodPost, "/v1/claims/"+*id+"/countersign", nil)
	case "validate":
		fs := flag.NewFlagSet("claims validate", flag.ExitOnError)
		id := fs.String("id", "", "claim id")
		_ = fs.Parse(args[1:])
		if *id == "" {
			fail("--id is required")
		}
		nodeFromEnv().call(http.MethodPost, "/v1/claims/"+*id+"/signature:validate", nil)
	default:
		fail(usage)
	}
}

func runReputation(args []string) {
	fs := flag.NewFlagSet("reputation", flag.ExitOnError)
	start := fs.String("start", "", "period start, RFC 3339")
	end := fs.String("end", "", "period end, RFC 3339")
	typ := fs.String("type", "", "claim type filter")
	_ = fs.Parse(args)
	if *start == "" || *end == "" {
		fail("--start and --end are required")
	}
	q := url.Values{}
	q.Set("period_start", *start)
	q.Set("period_end", *end)
	if *typ != "" {
		q.Set("claim_type", *typ)
	}
	nodeFromEnv().call(http.MethodGet, "/v1/reputation?"+q.Encode(), nil)
}

// runKey prints a fresh signing seed and its public key. The seed goes in
// SIGNING_SEED; the public key is what peers register.
func runKey(args []string) {
	if len(args) < 1 || args[0] != "gen" {
		fail(usage)
	}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		fail(err.Error())
	}
	seedHex := hex.EncodeToString(seed)
	signer, err := attest.SignerFromSeed("", seedHex)
	if err != nil {
		fail(err.Error())
	}
	out := map[string]string{"signing_seed": seedHex, "public_key": signer.PublicKeyB64()}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
