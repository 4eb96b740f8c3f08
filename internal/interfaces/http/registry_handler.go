// Package httpinterface exposes the swap registry's RPC surface as a JSON
// API: the create/withdraw/refund state machine plus the side-effect-free
// query operations.
package httpinterface

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hashlock-labs/swapd/internal/core/application"
	"github.com/hashlock-labs/swapd/internal/core/domain"
)

type swapView struct {
	SwapId      string `json:"swap_id"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	LedgerId    string `json:"ledger_id"`
	Amount      uint64 `json:"amount"`
	Hashlock    string `json:"hashlock"`
	Timelock    uint64 `json:"timelock"`
	Preimage    string `json:"preimage,omitempty"`
	Withdrawn   bool   `json:"withdrawn"`
	Refunded    bool   `json:"refunded"`
	CreatedAt   int64  `json:"created_at"`
	SettledAt   int64  `json:"settled_at,omitempty"`
	TransferRef string `json:"transfer_ref,omitempty"`
}

type envelope struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message,omitempty"`
	SwapId      string     `json:"swap_id,omitempty"`
	Swap        *swapView  `json:"swap,omitempty"`
	Swaps       []swapView `json:"swaps,omitempty"`
	Count       *uint64    `json:"count,omitempty"`
	Hash        string     `json:"hash,omitempty"`
	Valid       *bool      `json:"valid,omitempty"`
	TransferRef string     `json:"transfer_ref,omitempty"`
}

type createSwapRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	LedgerId  string `json:"ledger_id"`
	Amount    uint64 `json:"amount"`
	Hashlock  string `json:"hashlock"`
	Timelock  uint64 `json:"timelock"`
}

type withdrawRequest struct {
	Preimage string `json:"preimage"`
}

// RegistryHandler serves the registry surface over HTTP.
type RegistryHandler struct {
	registrySvc application.RegistryService
}

// NewRegistryHandler returns the handler backed by the given registry.
func NewRegistryHandler(registrySvc application.RegistryService) *RegistryHandler {
	return &RegistryHandler{registrySvc}
}

// Router returns the http handler with all the registry routes mounted.
func (h *RegistryHandler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/swaps", h.handleSwaps)
	mux.HandleFunc("/v1/swaps/", h.handleSwapById)
	mux.HandleFunc("/v1/swaps/count", h.handleCount)
	mux.HandleFunc("/v1/preimage/hash", h.handleHashPreimage)
	mux.HandleFunc("/v1/preimage/verify", h.handleVerifyPreimage)
	return mux
}

func (h *RegistryHandler) handleSwaps(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		h.createSwap(w, req)
	case http.MethodGet:
		h.listSwaps(w, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (h *RegistryHandler) createSwap(w http.ResponseWriter, req *http.Request) {
	var body createSwapRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.registrySvc.CreateSwap(req.Context(), application.CreateSwapRequest{
		Sender:    body.Sender,
		Recipient: body.Recipient,
		LedgerId:  body.LedgerId,
		Amount:    body.Amount,
		Hashlock:  body.Hashlock,
		Timelock:  body.Timelock,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := newSwapView(result.Swap)
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Message:     "swap created successfully",
		SwapId:      result.Swap.Id,
		Swap:        &view,
		TransferRef: result.TransferRef,
	})
}

func (h *RegistryHandler) listSwaps(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	query := req.URL.Query()

	var (
		swaps []*domain.Swap
		err   error
	)
	switch {
	case query.Get("sender") != "":
		swaps, err = h.registrySvc.GetSwapsBySender(ctx, query.Get("sender"))
	case query.Get("recipient") != "":
		swaps, err = h.registrySvc.GetSwapsByRecipient(ctx, query.Get("recipient"))
	case query.Get("state") == "active":
		swaps, err = h.registrySvc.GetActiveSwaps(ctx)
	case query.Get("state") == "expired":
		swaps, err = h.registrySvc.GetExpiredSwaps(ctx)
	default:
		swaps, err = h.registrySvc.GetAllSwaps(ctx)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]swapView, 0, len(swaps))
	for _, swap := range swaps {
		views = append(views, newSwapView(swap))
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Swaps: views})
}

func (h *RegistryHandler) handleSwapById(w http.ResponseWriter, req *http.Request) {
	path := strings.TrimPrefix(req.URL.Path, "/v1/swaps/")
	parts := strings.Split(path, "/")
	swapId := parts[0]
	if swapId == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing swap id"))
		return
	}

	if len(parts) == 1 {
		if req.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		h.getSwap(w, req, swapId)
		return
	}

	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	switch parts[1] {
	case "withdraw":
		h.withdraw(w, req, swapId)
	case "refund":
		h.refund(w, req, swapId)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown operation"))
	}
}

func (h *RegistryHandler) getSwap(w http.ResponseWriter, req *http.Request, swapId string) {
	swap, err := h.registrySvc.GetSwap(req.Context(), swapId)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := newSwapView(swap)
	writeJSON(w, http.StatusOK, envelope{Success: true, SwapId: swap.Id, Swap: &view})
}

func (h *RegistryHandler) withdraw(w http.ResponseWriter, req *http.Request, swapId string) {
	var body withdrawRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.registrySvc.Withdraw(req.Context(), swapId, body.Preimage)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := newSwapView(result.Swap)
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Message:     "withdrawal successful",
		SwapId:      swapId,
		Swap:        &view,
		TransferRef: result.TransferRef,
	})
}

func (h *RegistryHandler) refund(w http.ResponseWriter, req *http.Request, swapId string) {
	result, err := h.registrySvc.Refund(req.Context(), swapId)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := newSwapView(result.Swap)
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Message:     "refund successful",
		SwapId:      swapId,
		Swap:        &view,
		TransferRef: result.TransferRef,
	})
}

func (h *RegistryHandler) handleCount(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	count, err := h.registrySvc.GetSwapCount(req.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Count: &count})
}

func (h *RegistryHandler) handleHashPreimage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	preimage := req.URL.Query().Get("preimage")
	if preimage == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing preimage"))
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Hash:    h.registrySvc.HashPreimage(preimage),
	})
}

func (h *RegistryHandler) handleVerifyPreimage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	query := req.URL.Query()
	preimage, hashlock := query.Get("preimage"), query.Get("hashlock")
	if preimage == "" || hashlock == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing preimage or hashlock"))
		return
	}

	valid := h.registrySvc.VerifyPreimageHash(preimage, hashlock)
	writeJSON(w, http.StatusOK, envelope{Success: true, Valid: &valid})
}

func newSwapView(swap *domain.Swap) swapView {
	return swapView{
		SwapId:      swap.Id,
		Sender:      swap.Sender,
		Recipient:   swap.Recipient,
		LedgerId:    swap.LedgerId,
		Amount:      swap.Amount,
		Hashlock:    swap.Hashlock,
		Timelock:    swap.Timelock,
		Preimage:    swap.Preimage,
		Withdrawn:   swap.Withdrawn,
		Refunded:    swap.Refunded,
		CreatedAt:   swap.CreatedAt,
		SettledAt:   swap.SettledAt,
		TransferRef: swap.TransferRef,
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSwapNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSwapAlreadySettled),
		errors.Is(err, domain.ErrSwapTooEarly),
		errors.Is(err, domain.ErrSwapAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrHashMismatch):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTimelock),
		errors.Is(err, domain.ErrInvalidHashlock),
		errors.Is(err, domain.ErrInvalidParty),
		errors.Is(err, domain.ErrUnknownLedger):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusBadGateway
	}

	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, envelope{Success: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("failed to write http response")
	}
}
