package wallet_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/predictsync/internal/adapters/wallet"
	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clave de prueba conocida (hardhat #0), nunca usar con fondos reales.
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// chainServer responde eth_chainId con chainHex.
func chainServer(t *testing.T, chainHex string) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if req.Method == "eth_chainId" {
			resp["result"] = chainHex
		} else {
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func newWallet(t *testing.T, url string, endpoints map[uint64]string) *wallet.KeyWallet {
	t.Helper()
	w, err := wallet.New(testKey, url, endpoints, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestNew_WithoutKeyIsProviderUnavailable(t *testing.T) {
	_, err := wallet.New("  ", "", nil, nil)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	_, err = wallet.New("0xzz", "", nil, nil)
	assert.Error(t, err)
}

func TestAccounts_LockUnlock(t *testing.T) {
	w := newWallet(t, "", nil)
	ctx := context.Background()
	assert.Equal(t, testAddress, w.Address())

	accts, err := w.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accts)

	accts, err = w.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testAddress.Hex()}, accts)

	ev := <-w.Events()
	assert.Equal(t, domain.WalletAccountsChanged, ev.Kind)
	assert.Equal(t, []string{testAddress.Hex()}, ev.Accounts)

	w.Lock()
	ev = <-w.Events()
	assert.Equal(t, domain.WalletAccountsChanged, ev.Kind)
	assert.Empty(t, ev.Accounts)

	accts, _ = w.Accounts(ctx)
	assert.Empty(t, accts)
}

func TestNetworkID(t *testing.T) {
	w := newWallet(t, chainServer(t, "0xf22f"), nil)
	id, err := w.NetworkID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TargetNetworkID, id)
}

func TestNetworkID_NoEndpoint(t *testing.T) {
	w := newWallet(t, "", nil)
	_, err := w.NetworkID(context.Background())
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestSwitchNetwork(t *testing.T) {
	mainnet := chainServer(t, "0x1")
	studio := chainServer(t, "0xf22f")
	w := newWallet(t, mainnet, map[uint64]string{domain.TargetNetworkID: studio, 5: mainnet})
	ctx := context.Background()

	id, err := w.NetworkID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	require.NoError(t, w.SwitchNetwork(ctx, domain.TargetNetworkID))
	id, err = w.NetworkID(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetNetworkID, id)

	ev := <-w.Events()
	assert.Equal(t, domain.WalletNetworkChanged, ev.Kind)
	assert.Equal(t, domain.TargetNetworkID, ev.NetworkID)

	// endpoint mal configurado: dice ser la red 1
	assert.Error(t, w.SwitchNetwork(ctx, 5))
	// red sin endpoint
	assert.Error(t, w.SwitchNetwork(ctx, 42))
}

func TestSignTx(t *testing.T) {
	w := newWallet(t, "", nil)
	ctx := context.Background()
	chainID := new(big.Int).SetUint64(domain.TargetNetworkID)
	tx := types.NewTransaction(0, common.HexToAddress("0x01"), big.NewInt(0), 21000, big.NewInt(0), nil)

	_, err := w.SignTx(ctx, tx, chainID)
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	w.Unlock()
	signed, err := w.SignTx(ctx, tx, chainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewEIP155Signer(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, testAddress, sender)
	assert.Equal(t, 0, chainID.Cmp(signed.ChainId()))
}
