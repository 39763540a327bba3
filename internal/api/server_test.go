package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orchardfi/advisor/internal/actions"
	"github.com/orchardfi/advisor/internal/chain"
	"github.com/orchardfi/advisor/internal/custody"
	"github.com/orchardfi/advisor/internal/engine"
	"github.com/orchardfi/advisor/internal/extract"
	"github.com/orchardfi/advisor/internal/llm"
	"github.com/orchardfi/advisor/internal/market"
	"github.com/orchardfi/advisor/internal/memory"
	"github.com/orchardfi/advisor/internal/retry"
	"github.com/orchardfi/advisor/internal/testutil"
)

const testWallet = "0x1111111111111111111111111111111111111111"

type apiFakeLLM struct{}

func (apiFakeLLM) Complete(_ context.Context, prompt string, _ llm.Size) (string, error) {
	if strings.Contains(prompt, "wallet addresses") {
		return testWallet, nil
	}
	return "", errors.New("not scripted")
}

type apiFakeChain struct{}

func (apiFakeChain) AgentAddress() string { return "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa" }

func (apiFakeChain) NativeBalance(context.Context, string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (apiFakeChain) RegisterTask(context.Context, string, string, []byte) (string, error) {
	return "0xhash", nil
}

func (apiFakeChain) Execute(context.Context, string) error { return nil }

func (apiFakeChain) ReserveData(context.Context, string) (chain.ReserveData, error) {
	r := chain.ReserveData{
		CurrentLiquidityRate:      big.NewInt(0),
		CurrentVariableBorrowRate: big.NewInt(0),
		CurrentStableBorrowRate:   big.NewInt(0),
	}
	r.Configuration.Data = big.NewInt(0)
	return r, nil
}

func (apiFakeChain) OraclePrice(context.Context, string) (float64, error) {
	return 1.0, nil
}

type apiFakeCustody struct{}

func (apiFakeCustody) Lookup(context.Context, string, string) (string, error) {
	return "", custody.ErrNotFound
}

func (apiFakeCustody) Create(context.Context, string, string, string) (string, error) {
	return "0x2222222222222222222222222222222222222222", nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, closeFn := testutil.OpenTestDB(t)
	t.Cleanup(closeFn)

	store := memory.NewStore(db)
	ch := apiFakeChain{}
	deps := &actions.Deps{
		Store: store,
		Extract: &extract.Extractor{
			LLM:      apiFakeLLM{},
			APRRetry: retry.Policy{Attempts: 1, BaseDelay: time.Millisecond},
		},
		Custody:  apiFakeCustody{},
		Chain:    ch,
		Executor: ch,
		Market:   &market.Provider{Chain: ch, Log: zerolog.Nop()},
		AgentID:  "advisor",
		Log:      zerolog.Nop(),
	}
	return &Server{
		Engine:    engine.New(store, deps, zerolog.Nop()),
		Store:     store,
		Market:    &market.Provider{Chain: ch, Log: zerolog.Nop()},
		Hub:       NewHub(),
		StartedAt: time.Now(),
		Log:       zerolog.Nop(),
	}
}

func TestMessageTurnAndMemory(t *testing.T) {
	server := newTestServer(t)
	client := testutil.NewInProcessClient(server.Handler())

	resp := doJSON(t, client, "POST", "/api/rooms/room-1/messages", map[string]any{
		"user_id": "user-1",
		"text":    "my wallet is " + testWallet,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("message status: %d body=%s", resp.StatusCode, readBody(t, resp))
	}
	var turn struct {
		Replies []actions.Reply `json:"replies"`
	}
	decodeBody(t, resp, &turn)
	if len(turn.Replies) == 0 {
		t.Fatal("no replies")
	}
	if !strings.Contains(turn.Replies[0].Text, testWallet) {
		t.Fatalf("unexpected reply: %q", turn.Replies[0].Text)
	}

	resp = doJSON(t, client, "GET", "/api/rooms/room-1/memory", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("memory status: %d", resp.StatusCode)
	}
	var mem struct {
		Records []memory.Record `json:"records"`
	}
	decodeBody(t, resp, &mem)
	if len(mem.Records) != 2 {
		t.Fatalf("records = %d, want message + wallet", len(mem.Records))
	}
	if mem.Records[0].Action != actions.ActionMessage || mem.Records[1].Action != actions.ActionGetUserWallet {
		t.Fatalf("unexpected record actions: %s, %s", mem.Records[0].Action, mem.Records[1].Action)
	}
}

func TestMessageValidation(t *testing.T) {
	server := newTestServer(t)
	client := testutil.NewInProcessClient(server.Handler())

	resp := doJSON(t, client, "POST", "/api/rooms/room-1/messages", map[string]any{"text": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMarketAndPricesEndpoints(t *testing.T) {
	server := newTestServer(t)
	client := testutil.NewInProcessClient(server.Handler())

	resp := doJSON(t, client, "GET", "/api/market", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("market status: %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "Here's the current Aave market data") {
		t.Fatalf("market body missing report: %s", body)
	}

	resp = doJSON(t, client, "GET", "/api/prices", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prices status: %d", resp.StatusCode)
	}
	var prices struct {
		Prices []market.Price `json:"prices"`
	}
	decodeBody(t, resp, &prices)
	if len(prices.Prices) == 0 {
		t.Fatal("no prices")
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)
	client := testutil.NewInProcessClient(server.Handler())

	resp := doJSON(t, client, "GET", "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status: %d", resp.StatusCode)
	}
}

func TestUnknownRoomPathIs404(t *testing.T) {
	server := newTestServer(t)
	client := testutil.NewInProcessClient(server.Handler())

	resp := doJSON(t, client, "GET", "/api/rooms/room-1/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func doJSON(t *testing.T, client *http.Client, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, "http://in-process"+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
