package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orchardfi/advisor/internal/assets"
	"github.com/orchardfi/advisor/internal/memory"
)

const defaultAllocationUSD = 1000.0

var planKeywords = []string{"invest", "plan", "earn", "yield", "apy", "apr", "recommend", "aave"}

// namesAsset reports whether the text mentions a registry asset.
func namesAsset(text string) bool {
	lower := strings.ToLower(text)
	for _, asset := range assets.All() {
		if strings.Contains(lower, strings.ToLower(asset.Symbol)) {
			return true
		}
	}
	return false
}

// ProposePlan turns the user's investment criteria into a concrete plan:
// asset, allocation, live (or fallback) APR, risk level, and projected
// returns. The plan is appended to the room log so later turns can build the
// transaction from it.
func (d *Deps) ProposePlan() Action {
	return Action{
		Name: ActionProposePlan,
		Eligible: func(ctx context.Context, t *Turn) (bool, error) {
			if t.Msg.Continuation {
				return false, nil
			}
			processed, err := d.Store.Processed(ctx, t.Msg.RoomID, t.Msg.ID, ActionProposePlan)
			if err != nil {
				return false, err
			}
			if processed {
				return false, nil
			}
			if containsAny(t.Msg.Text, planKeywords) {
				return true, nil
			}
			// A pending clarifying question makes a bare asset name or an
			// affirmation a planning turn.
			if t.State.AssetInfoRequested && (namesAsset(t.Msg.Text) || isAffirmation(t.Msg.Text)) {
				return true, nil
			}
			return false, nil
		},
		Handle: func(ctx context.Context, t *Turn) (bool, error) {
			if err := d.Store.MarkProcessed(ctx, t.Msg.RoomID, t.Msg.ID, ActionProposePlan); err != nil {
				return false, fmt.Errorf("mark processed: %w", err)
			}

			criteria, err := d.Extract.InvestmentCriteria(ctx, t.State.Conversation())
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, I ran into a problem while reading your investment preferences. Please try again."})
				return true, err
			}

			symbol := ""
			if criteria.Asset != nil {
				symbol = strings.ToUpper(strings.TrimSpace(*criteria.Asset))
			}

			if symbol == "" {
				if !t.State.AssetInfoRequested && t.State.Plan == nil {
					return d.askForAsset(ctx, t)
				}
				// Already asked once; fall back to a recommendation based on
				// whatever risk signal the conversation carries.
				symbol = recommendAsset(criteria.RiskTolerance, t.State.Conversation())
			}

			asset, ok := assets.Lookup(symbol)
			if !ok {
				t.Reply(Reply{
					Text: fmt.Sprintf(
						"I'm sorry, but I couldn't find details for %s. I can currently help with %s. Would you like to choose a different asset?",
						symbol, strings.Join(assets.SupportedSymbols(), ", ")),
				})
				return true, nil
			}

			allocation := defaultAllocationUSD
			if criteria.AllocationAmountUSD != nil && *criteria.AllocationAmountUSD > 0 {
				allocation = *criteria.AllocationAmountUSD
			}

			apr := d.resolveAPR(ctx, asset.Symbol)
			riskLevel := assets.RiskLevel(asset.Symbol)

			dailyRate := apr / 365
			returns30 := allocation * dailyRate * 30
			returns90 := allocation * dailyRate * 90
			returns180 := allocation * dailyRate * 180

			planText := fmt.Sprintf(`Thank you for your interest in investing in %s on Aave!

Based on your criteria, here's my recommended investment plan:

📊 INVESTMENT SUMMARY:
- Asset: %s
- Investment Amount: $%v
- Current APY: %.2f%%
- Risk Level: %s

💰 PROJECTED RETURNS:
- 30 days: $%.2f
- 90 days: $%.2f
- 180 days: $%.2f

🔍 WHY %s?
%s

⚠️ RISK CONSIDERATIONS:
%s

Would you like me to prepare the transaction for this investment plan?`,
				asset.Symbol, asset.Symbol, allocation, apr*100, riskLevel,
				returns30, returns90, returns180,
				asset.Symbol, assets.Description(asset.Symbol), assets.RiskNote(asset.Symbol))

			now := time.Now().UnixMilli()
			plan := Plan{
				ChosenAsset:       asset.Symbol,
				AllocationAmount:  allocation,
				AssetAddress:      asset.Address,
				APR:               apr,
				RiskLevel:         riskLevel,
				DecisionTimestamp: now,
				PlanTimestamp:     now,
			}
			_, err = d.Store.Append(ctx, memory.RecordInput{
				RoomID:  t.Msg.RoomID,
				UserID:  t.Msg.UserID,
				AgentID: d.AgentID,
				Action:  ActionProposePlan,
				Content: map[string]any{
					"text":              "Investment plan",
					"investmentDetails": plan,
				},
			})
			if err != nil {
				t.Reply(Reply{Text: "I'm sorry, I ran into a problem while saving your investment plan. Please try again."})
				return true, fmt.Errorf("record plan: %w", err)
			}

			t.Reply(Reply{
				Text:   planText,
				Action: ActionProposePlan,
				Extra:  map[string]any{"investmentDetails": plan},
			})
			return true, nil
		},
	}
}

func (d *Deps) askForAsset(ctx context.Context, t *Turn) (bool, error) {
	_, err := d.Store.Append(ctx, memory.RecordInput{
		RoomID:  t.Msg.RoomID,
		UserID:  t.Msg.UserID,
		AgentID: d.AgentID,
		Action:  ActionRequestAssetInfo,
		Content: map[string]any{"text": "Asked for investment criteria"},
	})
	if err != nil {
		return false, fmt.Errorf("record asset request: %w", err)
	}
	t.Reply(Reply{
		Text: "I'd be happy to help you with an investment plan for Aave. Could you please tell me which asset you're interested in (WBTC, USDC, DAI, etc.) and how much you're planning to invest?",
	})
	return true, nil
}

// recommendAsset picks an asset from risk signals when the user never names
// one. Stables for cautious users, WBTC for return chasers.
func recommendAsset(riskTolerance *string, conversation string) string {
	lower := strings.ToLower(conversation)
	if riskTolerance != nil && strings.EqualFold(*riskTolerance, "high") {
		return "WBTC"
	}
	if strings.Contains(lower, "high return") {
		return "WBTC"
	}
	return "USDC"
}

// resolveAPR gets the asset's deposit APR as a decimal fraction, preferring
// the live market report and falling back to the static table.
func (d *Deps) resolveAPR(ctx context.Context, symbol string) float64 {
	report := d.Market.Report(ctx)
	if percent, ok := d.Extract.AssetAPRPercent(ctx, report, symbol); ok && percent > 0 {
		return percent / 100
	}
	d.Log.Warn().Str("asset", symbol).Msg("live APR unavailable, using fallback rate")
	return assets.Fallback(symbol).APR
}
