// Package extract pulls typed fields out of freeform conversation text via
// LLM completions. Model output is treated as semi-structured: every parser
// here degrades to "not found" or a neutral default instead of failing the
// turn on malformed output.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/orchardfi/advisor/internal/llm"
	"github.com/orchardfi/advisor/internal/retry"
)

const defaultAPRBaseDelay = time.Second

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a canonical EVM address: 0x followed by
// exactly 40 hex characters, either case.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

const walletAddressTemplate = `
You are an AI assistant helping to extract Ethereum wallet addresses from conversations.

CONVERSATION:
%s

TASK:
Extract any Ethereum wallet address from the conversation. Ethereum addresses start with "0x" followed by 40 hexadecimal characters.
If multiple addresses are found, return the most recently mentioned one.
If no valid Ethereum address is found, return "NO_WALLET_FOUND".

RESPONSE FORMAT:
Return only the wallet address or "NO_WALLET_FOUND" with no additional text.
`

const investmentCriteriaTemplate = `
You are analyzing a conversation to extract the user's investment criteria for Aave.
Extract the following information:
1. Has the user decided on an asset to invest in? (true/false)
2. If decided, which asset? (USDC, DAI, ETH, WBTC, etc.)
3. How much does the user want to allocate? (in USD)
4. What is the user's risk tolerance? (low, medium, high)

Format your response as a JSON object with the following structure:
{
  "asset": string,
  "allocationAmountUSD": number or null,
  "riskTolerance": "low" | "medium" | "high" or null
}

Recent conversation:
%s
`

const assetAPRTemplate = `Here is the current Aave market data:

%s

Based on the asset we have, which is %s, strictly return the deposit APR for it as a plain number. Do not include any quotes or other characters, just the number.`

// Criteria is the planner's view of what the user wants. Nil fields mean the
// conversation did not settle them.
type Criteria struct {
	Asset               *string  `json:"asset"`
	AllocationAmountUSD *float64 `json:"allocationAmountUSD"`
	RiskTolerance       *string  `json:"riskTolerance"`
}

var (
	jsonFencePattern  = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	jsonObjectPattern = regexp.MustCompile(`\{\s*"asset"[\s\S]*?\}`)
	numberPattern     = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

// Extractor runs the individual field extractions. The zero RetryPolicy gets
// the default bounded-backoff used for APR cleanup.
type Extractor struct {
	LLM      llm.Completer
	APRRetry retry.Policy
}

// WalletAddress asks the model for the most recent wallet address in the
// conversation. A response that is not a canonical address (including the
// explicit NO_WALLET_FOUND marker) yields found=false with no error.
func (e *Extractor) WalletAddress(ctx context.Context, conversation string) (string, bool, error) {
	response, err := e.LLM.Complete(ctx, fmt.Sprintf(walletAddressTemplate, conversation), llm.SizeSmall)
	if err != nil {
		return "", false, fmt.Errorf("wallet extraction: %w", err)
	}
	candidate := strings.TrimSpace(response)
	if !ValidAddress(candidate) {
		return "", false, nil
	}
	return candidate, true, nil
}

// InvestmentCriteria extracts the user's asset/amount/risk preferences. The
// model may wrap its JSON in prose or code fences; anything unparseable
// degrades to the neutral zero Criteria.
func (e *Extractor) InvestmentCriteria(ctx context.Context, conversation string) (Criteria, error) {
	response, err := e.LLM.Complete(ctx, fmt.Sprintf(investmentCriteriaTemplate, conversation), llm.SizeSmall)
	if err != nil {
		return Criteria{}, fmt.Errorf("criteria extraction: %w", err)
	}
	return ParseCriteria(response), nil
}

// ParseCriteria recovers a Criteria object from raw model output. Exposed for
// tests; never fails.
func ParseCriteria(response string) Criteria {
	jsonContent := strings.TrimSpace(response)
	if match := jsonFencePattern.FindStringSubmatch(response); len(match) > 1 {
		jsonContent = strings.TrimSpace(match[1])
	} else if direct := jsonObjectPattern.FindString(response); direct != "" {
		jsonContent = direct
	}

	var criteria Criteria
	if err := json.Unmarshal([]byte(jsonContent), &criteria); err != nil {
		return Criteria{}
	}
	if criteria.Asset != nil && strings.TrimSpace(*criteria.Asset) == "" {
		criteria.Asset = nil
	}
	return criteria
}

// AssetAPRPercent asks the model to read one asset's deposit APR out of a
// formatted market report. Returns the APR as a percentage figure (0.36 means
// 0.36%). ok=false means no usable number came back and the caller should use
// its fallback table.
func (e *Extractor) AssetAPRPercent(ctx context.Context, marketReport, symbol string) (float64, bool) {
	policy := e.APRRetry
	if policy.Attempts == 0 {
		policy = retry.Policy{Attempts: 3, BaseDelay: defaultAPRBaseDelay}
	}

	var response string
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var completeErr error
		response, completeErr = e.LLM.Complete(ctx, fmt.Sprintf(assetAPRTemplate, marketReport, symbol), llm.SizeSmall)
		return completeErr
	})
	if err != nil {
		return 0, false
	}
	return ParseNumber(response)
}

// ParseNumber pulls a float out of model output that should be a bare number
// but may arrive quoted or wrapped in prose.
func ParseNumber(response string) (float64, bool) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.Trim(cleaned, `"'`)
	stripped := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, cleaned)

	if value, err := strconv.ParseFloat(stripped, 64); err == nil {
		return value, true
	}
	if match := numberPattern.FindString(response); match != "" {
		if value, err := strconv.ParseFloat(match, 64); err == nil {
			return value, true
		}
	}
	return 0, false
}
