package evmledger

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

// escrowEnvelope is the response shape shared by every escrow endpoint.
type escrowEnvelope struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Code        string       `json:"code"`
	SwapId      string       `json:"swap_id"`
	Swap        *EscrowSwap  `json:"swap"`
	Swaps       []EscrowSwap `json:"swaps"`
	TransferRef string       `json:"transfer_ref"`
	Balance     string       `json:"balance"`
}

type escrowClient struct {
	baseUrl    string
	httpClient *http.Client
}

// NewEscrowClient returns an EscrowClient reaching the contract gateway at
// the given base url.
func NewEscrowClient(baseUrl string) EscrowClient {
	return &escrowClient{
		baseUrl:    baseUrl,
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

func (c *escrowClient) CreateSwap(ctx context.Context, swap EscrowSwap) (string, error) {
	res, err := c.post(ctx, "/v1/swaps", swap)
	if err != nil {
		return "", err
	}
	return res.SwapId, nil
}

func (c *escrowClient) Withdraw(
	ctx context.Context, swapId, preimage string,
) (string, error) {
	res, err := c.post(
		ctx, fmt.Sprintf("/v1/swaps/%s/withdraw", swapId),
		map[string]string{"preimage": preimage},
	)
	if err != nil {
		return "", err
	}
	return res.TransferRef, nil
}

func (c *escrowClient) Refund(ctx context.Context, swapId string) (string, error) {
	res, err := c.post(ctx, fmt.Sprintf("/v1/swaps/%s/refund", swapId), nil)
	if err != nil {
		return "", err
	}
	return res.TransferRef, nil
}

func (c *escrowClient) GetActiveSwaps(ctx context.Context) ([]EscrowSwap, error) {
	res, err := c.get(ctx, "/v1/swaps?state=active")
	if err != nil {
		return nil, err
	}
	return res.Swaps, nil
}

func (c *escrowClient) BalanceOf(ctx context.Context, account string) (string, error) {
	res, err := c.get(ctx, fmt.Sprintf("/v1/accounts/%s/balance", account))
	if err != nil {
		return "", err
	}
	return res.Balance, nil
}

func (c *escrowClient) Transfer(
	ctx context.Context, from, to, amount string,
) (string, error) {
	res, err := c.post(ctx, "/v1/transfers", map[string]string{
		"from": from, "to": to, "amount": amount,
	})
	if err != nil {
		return "", err
	}
	return res.TransferRef, nil
}

func (c *escrowClient) post(
	ctx context.Context, path string, body interface{},
) (*escrowEnvelope, error) {
	payload := new(bytes.Buffer)
	if body != nil {
		if err := json.NewEncoder(payload).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseUrl+path, payload,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *escrowClient) get(ctx context.Context, path string) (*escrowEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *escrowClient) do(req *http.Request) (*escrowEnvelope, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var envelope escrowEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("malformed escrow response: %s", err)
	}
	if !envelope.Success {
		return nil, escrowError(envelope)
	}
	return &envelope, nil
}

// escrowError maps a confirmed on-chain rejection to the matching domain
// error, so callers can tell logical conflicts apart from transport faults.
func escrowError(envelope escrowEnvelope) error {
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
	return fmt.Errorf("escrow rejected request: %s", envelope.Message)
}
