package actions

import (
	"context"
	"fmt"

	"github.com/orchardfi/advisor/internal/extract"
	"github.com/orchardfi/advisor/internal/memory"
)

const askWalletText = "To proceed with your investment, I'll need your Ethereum wallet address. Please provide your wallet address starting with '0x'."

var walletKeywords = []string{"wallet", "address", "change", "update", "correct", "wrong"}

// GetUserWallet captures the user's wallet address the first time one shows
// up in conversation.
func (d *Deps) GetUserWallet() Action {
	return Action{
		Name: ActionGetUserWallet,
		Eligible: func(_ context.Context, t *Turn) (bool, error) {
			if t.Msg.Continuation {
				return false, nil
			}
			return t.State.Wallet == "", nil
		},
		Handle: func(ctx context.Context, t *Turn) (bool, error) {
			if t.State.Wallet != "" {
				t.Reply(Reply{
					Text:   fmt.Sprintf("I've noted your wallet address (%s). I'll use this for your investment transaction.", t.State.Wallet),
					Action: ActionGetUserWallet,
				})
				return true, nil
			}

			address, found, err := d.Extract.WalletAddress(ctx, t.State.Conversation())
			if err != nil {
				t.Reply(Reply{Text: "I encountered an error while processing your wallet information. Please try again or provide your wallet address."})
				return true, err
			}
			if !found {
				t.Reply(Reply{Text: askWalletText, Action: ActionGetUserWallet})
				return true, nil
			}

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
				t.Reply(Reply{Text: "I encountered an error while processing your wallet information. Please try again or provide your wallet address."})
				return true, fmt.Errorf("record wallet: %w", err)
			}

			t.Reply(Reply{
				Text:   fmt.Sprintf("I've noted your wallet address (%s). I'll use this for your investment transaction.", address),
				Action: ActionGetUserWallet,
			})
			return true, nil
		},
	}
}

// ChangeUserWallet replaces a previously recorded wallet address. It only
// fires once a wallet exists; the audit trail keeps both addresses.
func (d *Deps) ChangeUserWallet() Action {
	return Action{
		Name: ActionChangeUserWallet,
		Eligible: func(_ context.Context, t *Turn) (bool, error) {
			if t.Msg.Continuation || t.State.Wallet == "" {
				return false, nil
			}
			return containsAny(t.Msg.Text, walletKeywords), nil
		},
		Handle: func(ctx context.Context, t *Turn) (bool, error) {
			previous := t.State.Wallet

			address, found, err := d.Extract.WalletAddress(ctx, "User: "+t.Msg.Text)
			if err != nil {
				t.Reply(Reply{Text: "I encountered an error while trying to update your wallet information. Please try again by providing your new wallet address."})
				return true, err
			}
			if !found || !extract.ValidAddress(address) {
				t.Reply(Reply{
					Text:   "I understand you want to change your wallet address. Please provide your new Ethereum wallet address starting with '0x'.",
					Action: ActionChangeUserWallet,
				})
				return true, nil
			}
			if address == previous {
				t.Reply(Reply{
					Text:   fmt.Sprintf("Your wallet address is already set to %s. No change needed.", previous),
					Action: ActionChangeUserWallet,
				})
				return true, nil
			}

			_, err = d.Store.Append(ctx, memory.RecordInput{
				RoomID:  t.Msg.RoomID,
				UserID:  t.Msg.UserID,
				AgentID: d.AgentID,
				Action:  ActionChangeUserWallet,
				Content: map[string]any{
					"text":            "Updated user wallet address",
					"userAddress":     address,
					"previousAddress": previous,
				},
			})
			if err != nil {
				t.Reply(Reply{Text: "I encountered an error while trying to update your wallet information. Please try again by providing your new wallet address."})
				return true, fmt.Errorf("record wallet change: %w", err)
			}

			t.Reply(Reply{
				Text:   fmt.Sprintf("I've updated your wallet address from %s to %s. I'll use this new address for your investment transaction.", previous, address),
				Action: ActionChangeUserWallet,
			})
			return true, nil
		},
	}
}
