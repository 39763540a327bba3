// Package actions holds the conversation actions the advisor can take on a
// turn: wallet capture and change, investment planning, multisig
// provisioning, transaction proposal, and the execution hand-off. Each action
// pairs an eligibility guard with a handler; the engine polls guards in
// priority order and runs the first match.
package actions

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orchardfi/advisor/internal/extract"
	"github.com/orchardfi/advisor/internal/memory"
)

// Action names double as memory record actions.
const (
	ActionMessage            = "MESSAGE"
	ActionGetUserWallet      = "GET_USER_WALLET"
	ActionChangeUserWallet   = "CHANGE_USER_WALLET"
	ActionProposePlan        = "PROPOSE_PLAN"
	ActionRequestAssetInfo   = "REQUEST_ASSET_INFO"
	ActionCreateMultisig     = "CREATE_MULTISIG"
	ActionRequestMultisig    = "REQUEST_MULTISIG"
	ActionProposeTransaction = "PROPOSE_TRANSACTION"
	ActionExecuteTransaction = "EXECUTE_TRANSACTION"
)

// Message is one inbound user message.
type Message struct {
	ID           string
	RoomID       string
	UserID       string
	Text         string
	Continuation bool
}

// Reply is one outbound message to the user.
type Reply struct {
	Text   string         `json:"text"`
	Action string         `json:"action,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// Turn carries everything an action needs for one message: the message
// itself, the derived room state, and the reply callback.
type Turn struct {
	Msg     Message
	State   *RoomState
	replies int
	reply   func(Reply)
}

// Reply sends one reply to the user.
func (t *Turn) Reply(r Reply) {
	t.replies++
	t.reply(r)
}

// Replied reports whether the turn has produced at least one reply.
func (t *Turn) Replied() bool {
	return t.replies > 0
}

// NewTurn builds a turn over already-derived state. The engine owns the
// usual construction; tests build turns directly.
func NewTurn(msg Message, state *RoomState, reply func(Reply)) *Turn {
	return &Turn{Msg: msg, State: state, reply: reply}
}

// Action is one conversational capability. Eligible must be cheap and
// side-effect free; Handle replies to the user and appends records. handled
// reports whether the turn was consumed (a clarifying question is still
// handled).
type Action struct {
	Name     string
	Eligible func(ctx context.Context, t *Turn) (bool, error)
	Handle   func(ctx context.Context, t *Turn) (handled bool, err error)
}

// Custody is the multisig custody service surface the actions use.
type Custody interface {
	Lookup(ctx context.Context, agentAddress, userAddress string) (string, error)
	Create(ctx context.Context, agentID, agentAddress, userAddress string) (string, error)
}

// Chain is the on-chain surface the actions use.
type Chain interface {
	AgentAddress() string
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	RegisterTask(ctx context.Context, taskID, target string, callData []byte) (string, error)
}

// Executor triggers off-chain execution of a registered task.
type Executor interface {
	Execute(ctx context.Context, taskID string) error
}

// Market produces the plain-text market report the planner feeds to the APR
// extractor.
type Market interface {
	Report(ctx context.Context) string
}

// Deps wires the actions to the rest of the system.
type Deps struct {
	Store    *memory.Store
	Extract  *extract.Extractor
	Custody  Custody
	Chain    Chain
	Executor Executor
	Market   Market
	AgentID  string
	Log      zerolog.Logger
}

// All returns the action set in priority order. The engine runs the first
// eligible one.
func (d *Deps) All() []Action {
	return []Action{
		d.ChangeUserWallet(),
		d.GetUserWallet(),
		d.ProposePlan(),
		d.CreateMultisig(),
		d.ProposeTransaction(),
		d.ExecuteTransaction(),
	}
}

// Plan is the durable outcome of a plan proposal.
type Plan struct {
	ChosenAsset       string  `json:"chosenAsset"`
	AllocationAmount  float64 `json:"allocationAmount"`
	AssetAddress      string  `json:"assetAddress"`
	APR               float64 `json:"apr"`
	RiskLevel         string  `json:"riskLevel"`
	DecisionTimestamp int64   `json:"decisionTimestamp"`
	PlanTimestamp     int64   `json:"planTimestamp"`
}

// TxPayload is a prepared transaction waiting for the execution hand-off.
type TxPayload struct {
	To        string  `json:"to"`
	Data      string  `json:"data"`
	Value     string  `json:"value"`
	Asset     string  `json:"asset"`
	AmountUSD float64 `json:"amountUSD"`
	APR       float64 `json:"apr"`
	RiskLevel string  `json:"riskLevel"`
	Multisig  string  `json:"multisig"`
}

// RoomState is the room's working state, derived from the record log on
// every turn. The log is the only durable truth; nothing here survives
// outside it.
type RoomState struct {
	Records []memory.Record

	// Wallet is the user's current address, from the newest wallet record.
	Wallet string
	// Plan is the latest proposed plan, if any.
	Plan *Plan
	// Multisig is the cached multisig address from the newest
	// CREATE_MULTISIG record.
	Multisig string
	// Payload is the latest prepared transaction, if any.
	Payload *TxPayload
	// AssetInfoRequested is set while the planner's clarifying question is
	// outstanding.
	AssetInfoRequested bool
	// MultisigRequested is set while the multisig-setup prompt is
	// outstanding.
	MultisigRequested bool
}

// DeriveState folds the room's records, oldest first, into working state.
func DeriveState(records []memory.Record) *RoomState {
	state := &RoomState{Records: records}
	for _, record := range records {
		switch record.Action {
		case ActionGetUserWallet, ActionChangeUserWallet:
			if addr, ok := record.Content["userAddress"].(string); ok && extract.ValidAddress(addr) {
				state.Wallet = addr
			}
		case ActionProposePlan:
			var plan Plan
			if decodeField(record.Content, "investmentDetails", &plan) && plan.ChosenAsset != "" {
				state.Plan = &plan
				state.AssetInfoRequested = false
			}
		case ActionRequestAssetInfo:
			state.AssetInfoRequested = true
		case ActionCreateMultisig:
			if addr, ok := record.Content["multisig_address"].(string); ok && addr != "" {
				state.Multisig = addr
				state.MultisigRequested = false
			}
		case ActionRequestMultisig:
			state.MultisigRequested = true
		case ActionProposeTransaction:
			var payload TxPayload
			if decodeField(record.Content, "payload", &payload) && payload.To != "" {
				state.Payload = &payload
			}
		}
	}
	return state
}

// Conversation renders the room's message history as prompt input, most
// recent last.
func (s *RoomState) Conversation() string {
	var lines []string
	for _, record := range s.Records {
		if record.Action != ActionMessage {
			continue
		}
		text, _ := record.Content["text"].(string)
		lines = append(lines, "User: "+text)
	}
	return strings.Join(lines, "\n")
}

// decodeField remarshals one content field into a typed value.
func decodeField(content map[string]any, key string, out any) bool {
	raw, ok := content[key]
	if !ok {
		return false
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(encoded, out) == nil
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

var affirmations = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "please do", "go ahead", "proceed", "sounds good"}

func isAffirmation(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, word := range affirmations {
		if lower == word || strings.HasPrefix(lower, word+" ") || strings.HasPrefix(lower, word+",") || strings.HasPrefix(lower, word+".") || strings.HasPrefix(lower, word+"!") {
			return true
		}
	}
	return false
}
