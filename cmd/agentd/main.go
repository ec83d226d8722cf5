// agentd is one agent's node: it holds the agent's signing key and private
// claims, serves the participation and governance API, and replicates
// public ledger entries to peer nodes when NATS is configured.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	claimsqlite "github.com/Sensorica/nondominium-sub002/internal/claims/sqlite"
	"github.com/Sensorica/nondominium-sub002/internal/config"
	"github.com/Sensorica/nondominium-sub002/internal/governance"
	"github.com/Sensorica/nondominium-sub002/internal/idempotency"
	"github.com/Sensorica/nondominium-sub002/internal/identity"
	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	ledgerpg "github.com/Sensorica/nondominium-sub002/internal/ledger/postgres"
	"github.com/Sensorica/nondominium-sub002/internal/receipts"
	"github.com/Sensorica/nondominium-sub002/internal/replication"
	"github.com/Sensorica/nondominium-sub002/internal/reputation"
	"github.com/Sensorica/nondominium-sub002/internal/server"
	"github.com/Sensorica/nondominium-sub002/pkg/attest"
	"github.com/Sensorica/nondominium-sub002/pkg/canonhash"
	"github.com/Sensorica/nondominium-sub002/pkg/db"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

func main() {
	cfg, err := config.ParseEnv()
	if err != nil {
		log.Fatalf("agentd: %v", err)
	}
	agent := domain.AgentID(cfg.AgentID)

	var signer *attest.Signer
	if cfg.SigningSeed != "" {
		signer, err = attest.SignerFromSeed(agent, cfg.SigningSeed)
	} else {
		signer, err = attest.NewSigner(agent)
		log.Printf("agentd: no SIGNING_SEED, generated an ephemeral key for %s", agent)
	}
	if err != nil {
		log.Fatalf("agentd: signing key: %v", err)
	}
	if cfg.HashAlg == "blake2b-256" {
		signer.HashAlg = canonhash.AlgBLAKE2b256
	}

	ctx := context.Background()
	var ledgerStore ledger.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("agentd: postgres: %v", err)
		}
		defer pool.Close()
		ledgerStore = ledgerpg.New(pool)
	} else {
		ledgerStore = ledger.NewMemoryStore()
	}
	l := ledger.New(ledgerStore)

	var claimStore claims.Store
	if cfg.ClaimsDBPath != "" {
		st, err := claimsqlite.Open(cfg.ClaimsDBPath)
		if err != nil {
			log.Fatalf("agentd: claims db: %v", err)
		}
		defer st.Close()
		claimStore = st
	} else {
		claimStore = claims.NewMemoryStore()
	}

	engine := receipts.NewEngine(claimStore, l, signer)
	rep := reputation.NewAggregator(claimStore)

	var dir identity.Directory
	if cfg.RoleDirectoryURL != "" {
		dir = identity.NewClient(cfg.RoleDirectoryURL)
	} else {
		dir = &identity.StaticDirectory{}
	}

	eval := governance.NewEvaluator(dir, rep, l, engine)
	eval.ReputationWindow = cfg.ReputationWindow

	tokens := server.NewTokenTable()
	token := cfg.APIToken
	if token == "" {
		token = uuid.NewString()
		log.Printf("agentd: no API_TOKEN, generated %s for %s", token, agent)
	}
	tokens.Add(token, agent)

	srv := &server.Server{
		Agent:       agent,
		Ledger:      l,
		Claims:      claimStore,
		Receipts:    engine,
		Reputation:  rep,
		Governance:  eval,
		Directory:   dir,
		Tokens:      tokens,
		Idempotency: idempotency.NewCacheStore(cfg.IdempotencyTTL),
	}

	if cfg.NATSURL != "" {
		conn, err := replication.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("agentd: nats: %v", err)
		}
		defer conn.Close()
		repl := replication.New(conn, l, agent)
		err = repl.Start(
			counterSignHandler(engine, repl),
			counterSignedHandler(ctx, engine),
		)
		if err != nil {
			log.Fatalf("agentd: replication: %v", err)
		}
		defer repl.Stop()
		srv.Replicator = repl
	}

	log.Printf("agentd: %s listening on %s", agent, cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Router()); err != nil {
		log.Fatalf("agentd: %v", err)
	}
}

// counterSignHandler answers corroboration requests from claim owners on
// other nodes. Corroborate refuses payloads that are not claims naming
// this agent as counterparty of an interaction in the local replica, so a
// peer cannot use the node as a signing oracle for fabricated claims.
func counterSignHandler(engine *receipts.Engine, repl *replication.Replicator) func(replication.CounterSignRequest) {
	return func(req replication.CounterSignRequest) {
		env, err := engine.Corroborate(context.Background(), req.Payload, req.Digest)
		if err != nil {
			log.Printf("agentd: countersign request %s: %v", req.ClaimID, err)
			return
		}
		err = repl.PublishCounterSignature(req.Requester, replication.CounterSignResponse{
			ClaimID:  req.ClaimID,
			Owner:    req.Requester,
			Envelope: env,
		})
		if err != nil {
			log.Printf("agentd: countersign response %s: %v", req.ClaimID, err)
		}
	}
}

func counterSignedHandler(ctx context.Context, engine *receipts.Engine) func(replication.CounterSignResponse) {
	return func(resp replication.CounterSignResponse) {
		if err := engine.AttachCounterSignature(ctx, resp.Owner, resp.ClaimID, resp.Envelope); err != nil {
			log.Printf("agentd: attach counter-signature %s: %v", resp.ClaimID, err)
		}
	}
}
