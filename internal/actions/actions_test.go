package actions

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/orchardfi/advisor/internal/custody"
	"github.com/orchardfi/advisor/internal/extract"
	"github.com/orchardfi/advisor/internal/idgen"
	"github.com/orchardfi/advisor/internal/llm"
	"github.com/orchardfi/advisor/internal/memory"
	"github.com/orchardfi/advisor/internal/retry"
	"github.com/orchardfi/advisor/internal/testutil"
)

const (
	userAddr  = "0x1111111111111111111111111111111111111111"
	otherAddr = "0x3333333333333333333333333333333333333333"
	safeAddr  = "0x2222222222222222222222222222222222222222"
	agentAddr = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
)

// scriptedLLM routes completions by prompt shape so one fake serves all
// extractors.
type scriptedLLM struct {
	wallet   string
	criteria string
	apr      string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ llm.Size) (string, error) {
	switch {
	case strings.Contains(prompt, "wallet addresses"):
		if s.wallet == "" {
			return "NO_WALLET_FOUND", nil
		}
		return s.wallet, nil
	case strings.Contains(prompt, "investment criteria"):
		return s.criteria, nil
	case strings.Contains(prompt, "deposit APR"):
		if s.apr == "" {
			return "", errors.New("no apr scripted")
		}
		return s.apr, nil
	}
	return "", errors.New("unexpected prompt")
}

type fakeCustody struct {
	lookupAddr  string
	lookupErr   error
	createAddr  string
	createErr   error
	createCalls int
}

func (f *fakeCustody) Lookup(context.Context, string, string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.lookupAddr, nil
}

func (f *fakeCustody) Create(context.Context, string, string, string) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createAddr, nil
}

type registeredTask struct {
	id     string
	target string
	data   []byte
}

type fakeChain struct {
	balance    *big.Int
	balanceErr error
	tasks      []registeredTask
	execErr    error
	executed   []string
}

func (f *fakeChain) AgentAddress() string { return agentAddr }

func (f *fakeChain) NativeBalance(context.Context, string) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeChain) RegisterTask(_ context.Context, taskID, target string, data []byte) (string, error) {
	f.tasks = append(f.tasks, registeredTask{id: taskID, target: target, data: data})
	return "0xhash", nil
}

func (f *fakeChain) Execute(_ context.Context, taskID string) error {
	f.executed = append(f.executed, taskID)
	return f.execErr
}

type fakeMarket struct{ report string }

func (f *fakeMarket) Report(context.Context) string { return f.report }

type env struct {
	deps    *Deps
	store   *memory.Store
	llm     *scriptedLLM
	custody *fakeCustody
	chain   *fakeChain
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)

	scripted := &scriptedLLM{}
	cus := &fakeCustody{lookupErr: custody.ErrNotFound, createAddr: safeAddr}
	ch := &fakeChain{balance: big.NewInt(0)}
	store := memory.NewStore(db)
	deps := &Deps{
		Store: store,
		Extract: &extract.Extractor{
			LLM:      scripted,
			APRRetry: retry.Policy{Attempts: 1, BaseDelay: time.Millisecond},
		},
		Custody:  cus,
		Chain:    ch,
		Executor: ch,
		Market:   &fakeMarket{report: "Here's the current Aave market data:\n\nUSDC:\n- Deposit: 0.36% APY (0.36% APR)\n"},
		AgentID:  "advisor",
		Log:      zerolog.Nop(),
	}
	return &env{deps: deps, store: store, llm: scripted, custody: cus, chain: ch}
}

// turn appends the message to the room log, derives state, and runs the
// first eligible action the way the engine does.
func (e *env) turn(t *testing.T, roomID, text string) []Reply {
	t.Helper()
	ctx := context.Background()
	msg := Message{ID: idgen.Message(), RoomID: roomID, UserID: "user-1", Text: text}

	_, err := e.store.Append(ctx, memory.RecordInput{
		RoomID:  roomID,
		UserID:  msg.UserID,
		AgentID: e.deps.AgentID,
		Action:  ActionMessage,
		Content: map[string]any{"text": text},
	})
	require.NoError(t, err)

	records, err := e.store.ByRoom(ctx, roomID)
	require.NoError(t, err)

	var replies []Reply
	turn := NewTurn(msg, DeriveState(records), func(r Reply) { replies = append(replies, r) })
	for _, action := range e.deps.All() {
		eligible, err := action.Eligible(ctx, turn)
		if err != nil || !eligible {
			continue
		}
		_, _ = action.Handle(ctx, turn)
		break
	}
	return replies
}

func (e *env) state(t *testing.T, roomID string) *RoomState {
	t.Helper()
	records, err := e.store.ByRoom(context.Background(), roomID)
	require.NoError(t, err)
	return DeriveState(records)
}

func requireOneReply(t *testing.T, replies []Reply) Reply {
	t.Helper()
	require.Len(t, replies, 1)
	return replies[0]
}
