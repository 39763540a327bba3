package actions

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/orchardfi/advisor/internal/chain"
	"github.com/orchardfi/advisor/internal/custody"
	"github.com/orchardfi/advisor/internal/idgen"
	"github.com/orchardfi/advisor/internal/memory"
)

var (
	transactionKeywords = []string{"transaction", "prepare", "proceed"}
	executeKeywords     = []string{"execute"}
)

// ProposeTransaction assembles the deposit payload for the current plan. It
// gates hard on an existing multisig and a funded balance; on success the
// payload is appended to the room log so the execution hand-off can pick it
// up later.
func (d *Deps) ProposeTransaction() Action {
	return Action{
		Name: ActionProposeTransaction,
		Eligible: func(ctx context.Context, t *Turn) (bool, error) {
			if t.Msg.Continuation || t.State.Plan == nil {
				return false, nil
			}
			processed, err := d.Store.Processed(ctx, t.Msg.RoomID, t.Msg.ID, ActionProposeTransaction)
			if err != nil {
				return false, err
			}
			if processed {
				return false, nil
			}
			if containsAny(t.Msg.Text, transactionKeywords) {
				return true, nil
			}
			// The plan ends by offering to prepare the transaction; a plain
			// yes accepts that offer until a payload exists.
			return t.State.Payload == nil && isAffirmation(t.Msg.Text), nil
		},
		Handle: func(ctx context.Context, t *Turn) (bool, error) {
			if err := d.Store.MarkProcessed(ctx, t.Msg.RoomID, t.Msg.ID, ActionProposeTransaction); err != nil {
				return false, fmt.Errorf("mark processed: %w", err)
			}

			userAddress, handled, err := d.resolveWallet(ctx, t)
			if handled || err != nil {
				return handled, err
			}

			multisig, handled, err := d.requireMultisig(ctx, t, userAddress)
			if handled || err != nil {
				return handled, err
			}

			balance, err := d.Chain.NativeBalance(ctx, multisig)
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, I couldn't check your multisig wallet balance right now. Please try again in a moment."})
				return true, fmt.Errorf("multisig balance: %w", err)
			}
			if balance.Cmp(chain.MinMultisigBalance) < 0 {
				t.Reply(Reply{Text: "I'm sorry, but your multisig wallet does not have enough balance to proceed with the transaction. Please top up your wallet and try again."})
				return true, nil
			}

			plan := t.State.Plan
			payload, err := buildPayload(plan, multisig)
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, I couldn't prepare the transaction payload. Please try again."})
				return true, err
			}

			_, err = d.Store.Append(ctx, memory.RecordInput{
				RoomID:  t.Msg.RoomID,
				UserID:  t.Msg.UserID,
				AgentID: d.AgentID,
				Action:  ActionProposeTransaction,
				Content: map[string]any{
					"text":    "Transaction payload",
					"payload": payload,
				},
			})
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, I couldn't save the transaction payload. Please try again."})
				return true, fmt.Errorf("record payload: %w", err)
			}

			t.Reply(Reply{
				Text: fmt.Sprintf(`I've prepared the transaction for your $%v investment in %s, depositing it into Aave to start earning the %.2f%% APY. The transaction will be executed from your multisig wallet (%s).

Transaction Details:
- Asset: %s
- Amount: $%v
- Protocol: Aave V3
- Expected APY: %.2f%%
- Risk Level: %s

The transaction has been submitted to your multisig wallet and is awaiting your confirmation. Would you like me to help you with anything else regarding this investment?`,
					plan.AllocationAmount, plan.ChosenAsset, plan.APR*100, multisig,
					plan.ChosenAsset, plan.AllocationAmount, plan.APR*100, plan.RiskLevel),
				Action: ActionProposeTransaction,
				Extra:  map[string]any{"payload": payload},
			})
			return true, nil
		},
	}
}

// ExecuteTransaction registers the prepared payload with the on-chain task
// registry and then asks the execution service to run it. Exhausted retries
// leave the task registered and recoverable, not failed.
func (d *Deps) ExecuteTransaction() Action {
	return Action{
		Name: ActionExecuteTransaction,
		Eligible: func(ctx context.Context, t *Turn) (bool, error) {
			if t.Msg.Continuation || t.State.Payload == nil {
				return false, nil
			}
			processed, err := d.Store.Processed(ctx, t.Msg.RoomID, t.Msg.ID, ActionExecuteTransaction)
			if err != nil {
				return false, err
			}
			if processed {
				return false, nil
			}
			return containsAny(t.Msg.Text, executeKeywords) || isAffirmation(t.Msg.Text), nil
		},
		Handle: func(ctx context.Context, t *Turn) (bool, error) {
			if err := d.Store.MarkProcessed(ctx, t.Msg.RoomID, t.Msg.ID, ActionExecuteTransaction); err != nil {
				return false, fmt.Errorf("mark processed: %w", err)
			}

			payload := t.State.Payload
			callData, err := hex.DecodeString(strings.TrimPrefix(payload.Data, "0x"))
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, the saved transaction payload looks corrupted. Please ask me to prepare the transaction again."})
				return true, fmt.Errorf("decode payload data: %w", err)
			}

			taskID := idgen.Task()
			txHash, err := d.Chain.RegisterTask(ctx, taskID, payload.To, callData)
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, I couldn't register your transaction on-chain right now. Please try again in a moment."})
				return true, fmt.Errorf("register task: %w", err)
			}

			executed := true
			if err := d.Executor.Execute(ctx, taskID); err != nil {
				d.Log.Warn().Err(err).Str("task_id", taskID).Msg("task registered but execution pending")
				executed = false
			}

			_, err = d.Store.Append(ctx, memory.RecordInput{
				RoomID:  t.Msg.RoomID,
				UserID:  t.Msg.UserID,
				AgentID: d.AgentID,
				Action:  ActionExecuteTransaction,
				Content: map[string]any{
					"text":     "Task registered",
					"taskId":   taskID,
					"txHash":   txHash,
					"executed": executed,
				},
			})
			if err != nil {
				return true, fmt.Errorf("record execution: %w", err)
			}

			if !executed {
				t.Reply(Reply{
					Text:   "Transaction registered but task execution failed. Please try again or contact support.",
					Action: ActionExecuteTransaction,
					Extra:  map[string]any{"taskId": taskID, "txHash": txHash},
				})
				return true, nil
			}

			t.Reply(Reply{
				Text:   fmt.Sprintf("Transaction with txUUID: %s has been verified by the plugins to be safe and what you intend to do, you can go ahead and execute it now by clicking on execute", taskID),
				Action: ActionExecuteTransaction,
				Extra:  map[string]any{"taskId": taskID, "txHash": txHash},
			})
			return true, nil
		},
	}
}

// resolveWallet finds the user's wallet for the transaction: room state
// first, then a fresh extraction over the conversation, else it asks.
// handled=true means a reply was sent and the turn is done.
func (d *Deps) resolveWallet(ctx context.Context, t *Turn) (string, bool, error) {
	if t.State.Wallet != "" {
		return t.State.Wallet, false, nil
	}

	address, found, err := d.Extract.WalletAddress(ctx, t.State.Conversation())
	if err != nil {
		t.Reply(Reply{Text: askWalletText, Action: ActionProposeTransaction})
		return "", true, err
	}
	if !found {
		t.Reply(Reply{Text: askWalletText, Action: ActionProposeTransaction})
		return "", true, nil
	}

	// Remember it so later turns resolve from memory directly.
	_, err = d.Store.Append(ctx, memory.RecordInput{
		RoomID:  t.Msg.RoomID,
		UserID:  t.Msg.UserID,
		AgentID: d.AgentID,
		Action:  ActionGetUserWallet,
		Content: map[string]any{
			"text":        "User wallet address",
			"userAddress": address,
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("record wallet: %w", err)
	}
	return address, false, nil
}

// requireMultisig resolves the multisig address, preferring the room cache
// and confirming with custody. No binding is a hard gate: the user gets the
// setup prompt and the turn ends.
func (d *Deps) requireMultisig(ctx context.Context, t *Turn, userAddress string) (string, bool, error) {
	address, err := d.Custody.Lookup(ctx, d.Chain.AgentAddress(), userAddress)
	if err == nil {
		return address, false, nil
	}
	if !errors.Is(err, custody.ErrNotFound) {
		t.Reply(Reply{Text: "I'm sorry, I couldn't reach the wallet service right now. Please try again in a moment."})
		return "", true, fmt.Errorf("lookup multisig: %w", err)
	}
	if t.State.Multisig != "" {
		// Custody lost the binding but the room log still has it.
		return t.State.Multisig, false, nil
	}

	_, err = d.Store.Append(ctx, memory.RecordInput{
		RoomID:  t.Msg.RoomID,
		UserID:  t.Msg.UserID,
		AgentID: d.AgentID,
		Action:  ActionRequestMultisig,
		Content: map[string]any{"text": "Asked to set up a multisig wallet"},
	})
	if err != nil {
		return "", false, fmt.Errorf("record multisig request: %w", err)
	}
	t.Reply(Reply{Text: multisigPromptText, Action: ActionProposeTransaction})
	return "", true, nil
}

// buildPayload encodes the deposit for the plan's asset. Native assets go
// through the gateway with the deposit riding as transaction value; ERC-20
// assets use a pool supply call.
func buildPayload(plan *Plan, multisig string) (TxPayload, error) {
	payload := TxPayload{
		Asset:     plan.ChosenAsset,
		AmountUSD: plan.AllocationAmount,
		APR:       plan.APR,
		RiskLevel: plan.RiskLevel,
		Multisig:  multisig,
	}

	if plan.AssetAddress == "" {
		data, err := chain.DepositETHCallData(multisig)
		if err != nil {
			return TxPayload{}, fmt.Errorf("encode depositETH: %w", err)
		}
		payload.To = chain.GatewayAddress.Hex()
		payload.Data = "0x" + hex.EncodeToString(data)
		payload.Value = chain.MinMultisigBalance.String()
		return payload, nil
	}

	amount := new(big.Int).SetInt64(int64(plan.AllocationAmount))
	data, err := chain.SupplyCallData(plan.AssetAddress, amount, multisig)
	if err != nil {
		return TxPayload{}, fmt.Errorf("encode supply: %w", err)
	}
	payload.To = chain.PoolAddress.Hex()
	payload.Data = "0x" + hex.EncodeToString(data)
	payload.Value = "0"
	return payload, nil
}
