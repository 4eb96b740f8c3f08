package icpledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashlock-labs/swapd/internal/core/domain"
)

const clientTimeout = 15 * time.Second

// canisterEnvelope mirrors the canister's SwapResponse candid record.
type canisterEnvelope struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	Code        string         `json:"code"`
	SwapId      string         `json:"swap_id"`
	Swap        *CanisterSwap  `json:"swap"`
	Swaps       []CanisterSwap `json:"swaps"`
	TransferRef string         `json:"transfer_result"`
	Balance     uint64         `json:"balance"`
}

type canisterClient struct {
	baseUrl    string
	httpClient *http.Client
}

// NewCanisterClient returns a CanisterClient reaching the canister through
// the agent gateway at the given base url.
func NewCanisterClient(baseUrl string) CanisterClient {
	return &canisterClient{
		baseUrl:    baseUrl,
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

func (c *canisterClient) CreateSwap(ctx context.Context, swap CanisterSwap) (string, error) {
	res, err := c.call(ctx, "create_swap", swap)
	if err != nil {
		return "", err
	}
	return res.SwapId, nil
}

func (c *canisterClient) Withdraw(
	ctx context.Context, swapId, preimage string,
) (string, error) {
	res, err := c.call(ctx, "withdraw", map[string]string{
		"swap_id": swapId, "preimage": preimage,
	})
	if err != nil {
		return "", err
	}
	return res.TransferRef, nil
}

func (c *canisterClient) Refund(ctx context.Context, swapId string) (string, error) {
	res, err := c.call(ctx, "refund", map[string]string{"swap_id": swapId})
	if err != nil {
		return "", err
	}
	return res.TransferRef, nil
}

func (c *canisterClient) GetActiveSwaps(ctx context.Context) ([]CanisterSwap, error) {
	res, err := c.call(ctx, "get_active_swaps", nil)
	if err != nil {
		return nil, err
	}
	return res.Swaps, nil
}

func (c *canisterClient) BalanceOf(ctx context.Context, account string) (uint64, error) {
	res, err := c.call(ctx, "icrc1_balance_of", map[string]string{"account": account})
	if err != nil {
		return 0, err
	}
	return res.Balance, nil
}

func (c *canisterClient) Transfer(
	ctx context.Context, from, to string, amount uint64,
) (string, error) {
	res, err := c.call(ctx, "icrc1_transfer", map[string]interface{}{
		"from": from, "to": to, "amount": amount,
	})
	if err != nil {
		return "", err
	}
	return res.TransferRef, nil
}

func (c *canisterClient) call(
	ctx context.Context, method string, args interface{},
) (*canisterEnvelope, error) {
	payload := new(bytes.Buffer)
	if err := json.NewEncoder(payload).Encode(map[string]interface{}{
		"method": method,
		"args":   args,
	}); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseUrl+"/api/call", payload,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var envelope canisterEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("malformed canister response: %s", err)
	}
	if !envelope.Success {
		return nil, canisterError(envelope)
	}
	return &envelope, nil
}

// canisterError maps a confirmed canister rejection to the matching domain
// error, so callers can tell logical conflicts apart from transport faults.
func canisterError(envelope canisterEnvelope) error {
	codes := map[string]error{
		"not_found":        domain.ErrSwapNotFound,
		"already_settled":  domain.ErrSwapAlreadySettled,
		"too_early":        domain.ErrSwapTooEarly,
		"hash_mismatch":    domain.ErrHashMismatch,
		"invalid_amount":   domain.ErrInvalidAmount,
		"invalid_timelock": domain.ErrInvalidTimelock,
		"invalid_hashlock": domain.ErrInvalidHashlock,
		"transfer_failed":  domain.ErrTransferFailed,
	}
	if err, ok := codes[envelope.Code]; ok {
		return fmt.Errorf("%w: %s", err, envelope.Message)
	}
	return fmt.Errorf("canister rejected request: %s", envelope.Message)
}
