package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/orchardfi/advisor/internal/custody"
	"github.com/orchardfi/advisor/internal/memory"
)

var multisigKeywords = []string{"multisig", "secure wallet", "safe wallet"}

const multisigPromptText = "Thank you for your investment decision. Before we can proceed, we need to set up a secure multisig wallet for you. This is a required step to ensure the security of your investment. Would you like me to create a multisig wallet for you now?"

// CreateMultisig provisions the user's multisig through the custody service.
// Provisioning is idempotent: an existing binding is adopted, never
// re-created.
func (d *Deps) CreateMultisig() Action {
	return Action{
		Name: ActionCreateMultisig,
		Eligible: func(_ context.Context, t *Turn) (bool, error) {
			if t.Msg.Continuation {
				return false, nil
			}
			if containsAny(t.Msg.Text, multisigKeywords) {
				return true, nil
			}
			// An affirmative answer to the outstanding setup prompt counts.
			return t.State.MultisigRequested && isAffirmation(t.Msg.Text), nil
		},
		Handle: func(ctx context.Context, t *Turn) (bool, error) {
			if t.State.Wallet == "" {
				t.Reply(Reply{Text: askWalletText, Action: ActionCreateMultisig})
				return true, nil
			}

			agentAddress := d.Chain.AgentAddress()

			address, err := d.Custody.Lookup(ctx, agentAddress, t.State.Wallet)
			switch {
			case err == nil:
				// Already provisioned; adopt the existing binding.
			case errors.Is(err, custody.ErrNotFound):
				address, err = d.Custody.Create(ctx, d.AgentID, agentAddress, t.State.Wallet)
				if err != nil {
					t.Reply(Reply{Text: "I'm sorry, I couldn't set up your multisig wallet right now. Please try again in a moment."})
					return true, fmt.Errorf("create multisig: %w", err)
				}
			default:
				t.Reply(Reply{Text: "I'm sorry, I couldn't reach the wallet service right now. Please try again in a moment."})
				return true, fmt.Errorf("lookup multisig: %w", err)
			}

			_, err = d.Store.Append(ctx, memory.RecordInput{
				RoomID:  t.Msg.RoomID,
				UserID:  t.Msg.UserID,
				AgentID: d.AgentID,
				Action:  ActionCreateMultisig,
				Content: map[string]any{
					"text":             "Multisig wallet created successfully",
					"multisig_address": address,
					"userAddress":      t.State.Wallet,
				},
			})
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, I couldn't set up your multisig wallet right now. Please try again in a moment."})
				return true, fmt.Errorf("record multisig: %w", err)
			}

			t.Reply(Reply{
				Text: fmt.Sprintf(`Great news! I've successfully created a new multisig wallet for you.
Here are the details:
- Multisig Wallet Address: %s
- Status: Successfully created and deployed
- Connected to your address: %s

You can now use this multisig wallet for secure transactions. Would you like to know what you can do with it?`, address, t.State.Wallet),
				Action: ActionCreateMultisig,
				Extra:  map[string]any{"multisig_address": address},
			})
			return true, nil
		},
	}
}
