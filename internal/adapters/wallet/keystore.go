package wallet

// keystore.go: Local private-key wallet.
//
// Plays the role of the browser wallet for a headless client: it holds one
// account, can be locked/unlocked, reports the chain id of the endpoint it is
// attached to, and can be moved to another configured endpoint. Signing uses
// EIP-155 so a transaction is only valid on the chain it was built for.

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const eventBuffer = 16

// KeyWallet implementa ports.Wallet y genlayer.Signer con una clave local.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  *slog.Logger
	events  chan domain.WalletEvent

	mu        sync.Mutex
	unlocked  bool
	endpoints map[uint64]string
	url       string
	client    *ethclient.Client
}

// New crea el wallet. privateKeyHex acepta prefijo 0x. endpoints mapea chain
// id → URL RPC; url es el endpoint inicial. Sin clave no hay proveedor.
func New(privateKeyHex, url string, endpoints map[uint64]string, logger *slog.Logger) (*KeyWallet, error) {
	privateKeyHex = strings.TrimSpace(privateKeyHex)
	if privateKeyHex == "" {
		return nil, fmt.Errorf("wallet: no private key configured: %w", domain.ErrProviderUnavailable)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	eps := make(map[uint64]string, len(endpoints))
	for id, u := range endpoints {
		eps[id] = u
	}
	return &KeyWallet{
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		logger:    logger,
		events:    make(chan domain.WalletEvent, eventBuffer),
		endpoints: eps,
		url:       url,
	}, nil
}

// Address devuelve la cuenta del wallet aunque esté bloqueado.
func (w *KeyWallet) Address() common.Address { return w.address }

// Accounts devuelve la cuenta si el wallet está desbloqueado.
func (w *KeyWallet) Accounts(context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.unlocked {
		return nil, nil
	}
	return []string{w.address.Hex()}, nil
}

// RequestAccounts desbloquea el wallet y devuelve la cuenta.
func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	changed := !w.unlocked
	w.unlocked = true
	w.mu.Unlock()

	accounts := []string{w.address.Hex()}
	if changed {
		w.emit(domain.WalletEvent{Kind: domain.WalletAccountsChanged, Accounts: accounts})
	}
	return accounts, nil
}

// Unlock autoriza la cuenta sin emitir eventos (arranque con cuenta ya autorizada).
func (w *KeyWallet) Unlock() {
	w.mu.Lock()
	w.unlocked = true
	w.mu.Unlock()
}

// Lock bloquea el wallet; los suscriptores ven un conjunto de cuentas vacío.
func (w *KeyWallet) Lock() {
	w.mu.Lock()
	changed := w.unlocked
	w.unlocked = false
	w.mu.Unlock()

	if changed {
		w.emit(domain.WalletEvent{Kind: domain.WalletAccountsChanged})
	}
}

// NetworkID consulta el chain id del endpoint actual.
func (w *KeyWallet) NetworkID(ctx context.Context) (uint64, error) {
	client, err := w.conn(ctx)
	if err != nil {
		return 0, err
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("wallet: chain id: %w", err)
	}
	return id.Uint64(), nil
}

// SwitchNetwork se mueve al endpoint configurado para target y verifica
// que de verdad sirve esa red.
func (w *KeyWallet) SwitchNetwork(ctx context.Context, target uint64) error {
	w.mu.Lock()
	url, ok := w.endpoints[target]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("wallet: no endpoint configured for network %d", target)
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return fmt.Errorf("wallet: dial %s: %w", url, err)
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("wallet: chain id of %s: %w", url, err)
	}
	if id.Uint64() != target {
		client.Close()
		return fmt.Errorf("wallet: endpoint %s serves network %d, not %d", url, id.Uint64(), target)
	}

	w.mu.Lock()
	old := w.client
	w.client = client
	w.url = url
	w.mu.Unlock()
	if old != nil {
		old.Close()
	}

	w.logger.Info("wallet: network switched", "network", target, "url", url)
	w.emit(domain.WalletEvent{Kind: domain.WalletNetworkChanged, NetworkID: target})
	return nil
}

// Events entrega cambios de cuentas y de red.
func (w *KeyWallet) Events() <-chan domain.WalletEvent { return w.events }

// SignTx firma tx con EIP-155 para chainID.
func (w *KeyWallet) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	w.mu.Lock()
	unlocked := w.unlocked
	w.mu.Unlock()
	if !unlocked {
		return nil, fmt.Errorf("wallet: locked: %w", domain.ErrNotConnected)
	}
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign tx: %w", err)
	}
	return signed, nil
}

// Close cierra la conexión RPC si existe.
func (w *KeyWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
}

func (w *KeyWallet) conn(ctx context.Context) (*ethclient.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		return w.client, nil
	}
	if w.url == "" {
		return nil, fmt.Errorf("wallet: no rpc endpoint: %w", domain.ErrProviderUnavailable)
	}
	client, err := ethclient.DialContext(ctx, w.url)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial %s: %w", w.url, err)
	}
	w.client = client
	return client, nil
}

// emit nunca bloquea: si nadie consume, el evento se descarta.
func (w *KeyWallet) emit(ev domain.WalletEvent) {
	select {
	case w.events <- ev:
	default:
		w.logger.Warn("wallet: event dropped, no consumer", "kind", ev.Kind)
	}
}
