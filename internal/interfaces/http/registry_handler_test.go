package httpinterface_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashlock-labs/swapd/internal/core/application"
	"github.com/hashlock-labs/swapd/internal/core/ports"
	mockledger "github.com/hashlock-labs/swapd/internal/infrastructure/ledger/mock"
	"github.com/hashlock-labs/swapd/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/hashlock-labs/swapd/internal/interfaces/http"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

const (
	testLedgerId = "ryjl3-tyaaa-aaaaa-aaaba-cai"
	testPreimage = "12345678901"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SwapId  string `json:"swap_id"`
	Swap    *struct {
		SwapId    string `json:"swap_id"`
		Hashlock  string `json:"hashlock"`
		Withdrawn bool   `json:"withdrawn"`
		Refunded  bool   `json:"refunded"`
		Preimage  string `json:"preimage"`
	} `json:"swap"`
	Swaps []json.RawMessage `json:"swaps"`
	Count *uint64           `json:"count"`
	Hash  string            `json:"hash"`
	Valid *bool             `json:"valid"`
}

func newTestServer(t *testing.T) (*httptest.Server, application.RegistryService) {
	t.Helper()

	ledger := mockledger.NewLedger(
		commitment.LedgerIcp, "escrow", map[string]uint64{"alice": 10_000_000},
	)
	registrySvc := application.NewRegistryService(
		commitment.LedgerIcp, "escrow", inmemory.NewRepoManager(),
		map[string]ports.LedgerService{testLedgerId: ledger},
	)

	server := httptest.NewServer(
		httpinterface.NewRegistryHandler(registrySvc).Router(),
	)
	t.Cleanup(server.Close)
	return server, registrySvc
}

func doJSON(
	t *testing.T, method, url string, body interface{},
) (int, *response) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req, err := http.NewRequest(method, url, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	parsed := &response{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(parsed))
	return resp.StatusCode, parsed
}

func createSwapBody(svc application.RegistryService) map[string]interface{} {
	return map[string]interface{}{
		"sender":    "alice",
		"recipient": "bob",
		"ledger_id": testLedgerId,
		"amount":    1_000_000,
		"hashlock":  svc.HashPreimage(testPreimage),
		"timelock": commitment.NativeTime(
			commitment.LedgerIcp, time.Now().Add(2*time.Hour),
		),
	}
}

func TestSwapLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(t)

	status, created := doJSON(
		t, http.MethodPost, server.URL+"/v1/swaps", createSwapBody(svc),
	)
	require.Equal(t, http.StatusOK, status)
	require.True(t, created.Success)
	require.NotEmpty(t, created.SwapId)

	swapUrl := fmt.Sprintf("%s/v1/swaps/%s", server.URL, created.SwapId)

	status, fetched := doJSON(t, http.MethodGet, swapUrl, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, fetched.Swap)
	require.False(t, fetched.Swap.Withdrawn)

	// Refund before the deadline conflicts with the timelock.
	status, refunded := doJSON(t, http.MethodPost, swapUrl+"/refund", map[string]interface{}{})
	require.Equal(t, http.StatusConflict, status)
	require.False(t, refunded.Success)

	// A wrong preimage is rejected without settling the swap.
	status, _ = doJSON(t, http.MethodPost, swapUrl+"/withdraw", map[string]interface{}{
		"preimage": "not-the-preimage",
	})
	require.Equal(t, http.StatusForbidden, status)

	status, withdrawn := doJSON(t, http.MethodPost, swapUrl+"/withdraw", map[string]interface{}{
		"preimage": testPreimage,
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, withdrawn.Success)
	require.True(t, withdrawn.Swap.Withdrawn)
	require.Equal(t, testPreimage, withdrawn.Swap.Preimage)

	// Settling twice conflicts.
	status, _ = doJSON(t, http.MethodPost, swapUrl+"/withdraw", map[string]interface{}{
		"preimage": testPreimage,
	})
	require.Equal(t, http.StatusConflict, status)
}

func TestCreateSwapRejectsBadRequests(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(t)

	body := createSwapBody(svc)
	body["ledger_id"] = "no-such-ledger"
	status, resp := doJSON(t, http.MethodPost, server.URL+"/v1/swaps", body)
	require.Equal(t, http.StatusBadRequest, status)
	require.False(t, resp.Success)

	body = createSwapBody(svc)
	body["hashlock"] = "zz"
	status, _ = doJSON(t, http.MethodPost, server.URL+"/v1/swaps", body)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestGetUnknownSwap(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	status, resp := doJSON(t, http.MethodGet, server.URL+"/v1/swaps/missing", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.False(t, resp.Success)
}

func TestSwapQueriesOverHTTP(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(t)

	status, _ := doJSON(t, http.MethodPost, server.URL+"/v1/swaps", createSwapBody(svc))
	require.Equal(t, http.StatusOK, status)

	status, listed := doJSON(t, http.MethodGet, server.URL+"/v1/swaps?state=active", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, listed.Swaps, 1)

	status, listed = doJSON(t, http.MethodGet, server.URL+"/v1/swaps?state=expired", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, listed.Swaps)

	status, listed = doJSON(t, http.MethodGet, server.URL+"/v1/swaps?sender=alice", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, listed.Swaps, 1)

	status, counted := doJSON(t, http.MethodGet, server.URL+"/v1/swaps/count", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, counted.Count)
	require.Equal(t, uint64(1), *counted.Count)
}

func TestQueryEndpointsRejectNonGetMethods(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	for _, path := range []string{
		"/v1/swaps/count",
		"/v1/preimage/hash",
		"/v1/preimage/verify",
	} {
		status, resp := doJSON(t, http.MethodPost, server.URL+path, map[string]interface{}{})
		require.Equal(t, http.StatusMethodNotAllowed, status)
		require.False(t, resp.Success)
	}
}

func TestPreimageEndpoints(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(t)

	status, hashed := doJSON(
		t, http.MethodGet,
		server.URL+"/v1/preimage/hash?preimage="+testPreimage, nil,
	)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, svc.HashPreimage(testPreimage), hashed.Hash)

	verifyUrl := fmt.Sprintf(
		"%s/v1/preimage/verify?preimage=%s&hashlock=%s",
		server.URL, testPreimage, hashed.Hash,
	)
	status, verified := doJSON(t, http.MethodGet, verifyUrl, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, verified.Valid)
	require.True(t, *verified.Valid)

	status, verified = doJSON(
		t, http.MethodGet,
		fmt.Sprintf(
			"%s/v1/preimage/verify?preimage=wrong&hashlock=%s",
			server.URL, hashed.Hash,
		), nil,
	)
	require.Equal(t, http.StatusOK, status)
	require.False(t, *verified.Valid)

	status, _ = doJSON(t, http.MethodGet, server.URL+"/v1/preimage/hash", nil)
	require.Equal(t, http.StatusBadRequest, status)
}
