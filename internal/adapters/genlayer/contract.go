package genlayer

// contract.go: Intelligent contract binding for the prediction game.
//
// Reads go through gen_call (no transaction, no signature). Writes are
// wrapped as addTransaction(...) on the consensus contract, signed by the
// session wallet and broadcast with eth_sendRawTransaction; the returned
// hash is the handle the finality poller follows.

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/ports"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	// DefaultConsensusAddress es el ConsensusMain de Studio.
	DefaultConsensusAddress = "0xb7278A61aa25c888815aFC32Ad3cC52fF24fE575"

	defaultValidators   = 5
	defaultMaxRotations = 3

	// Studio no cobra gas; el límite solo tiene que ser plausible.
	defaultGasLimit = uint64(300_000)

	resultSuccess = 0
)

var consensusABI abi.ABI

func init() {
	var err error
	consensusABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "addTransaction",
			"type": "function",
			"inputs": [
				{"name": "_sender", "type": "address"},
				{"name": "_recipient", "type": "address"},
				{"name": "_numOfInitialValidators", "type": "uint256"},
				{"name": "_maxRotations", "type": "uint256"},
				{"name": "_txData", "type": "bytes"}
			],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("consensus abi parse: " + err.Error())
	}
}

// Signer firma transacciones en nombre de una cuenta.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Options configura el envío de escrituras.
type Options struct {
	ConsensusAddress string
	ChainID          uint64
	Validators       int64
	MaxRotations     int64
}

func (o Options) withDefaults() Options {
	if o.ConsensusAddress == "" {
		o.ConsensusAddress = DefaultConsensusAddress
	}
	if o.ChainID == 0 {
		o.ChainID = domain.TargetNetworkID
	}
	if o.Validators <= 0 {
		o.Validators = defaultValidators
	}
	if o.MaxRotations <= 0 {
		o.MaxRotations = defaultMaxRotations
	}
	return o
}

// Dialer implementa ports.ContractDialer sobre un Client.
type Dialer struct {
	client *Client
	signer Signer
	opts   Options
}

// NewDialer crea el dialer. Sin signer los contratos ligados solo leen.
func NewDialer(client *Client, signer Signer, opts Options) *Dialer {
	return &Dialer{client: client, signer: signer, opts: opts.withDefaults()}
}

// Bind liga contractID a la cuenta accountID.
func (d *Dialer) Bind(contractID, accountID string) (ports.Contract, error) {
	if !common.IsHexAddress(contractID) {
		return nil, fmt.Errorf("genlayer.Bind: contract %q: %w", contractID, domain.ErrContractNotConfigured)
	}
	if !common.IsHexAddress(accountID) {
		return nil, fmt.Errorf("genlayer.Bind: account %q: %w", accountID, domain.ErrNotConnected)
	}
	logger := d.client.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Contract{
		client:    d.client,
		signer:    d.signer,
		address:   common.HexToAddress(contractID),
		account:   common.HexToAddress(accountID),
		consensus: common.HexToAddress(d.opts.ConsensusAddress),
		chainID:   new(big.Int).SetUint64(d.opts.ChainID),
		opts:      d.opts,
		logger:    logger.With("contract", contractID),
	}, nil
}

// Contract implementa ports.Contract para el juego de predicciones.
type Contract struct {
	client    *Client
	signer    Signer
	address   common.Address
	account   common.Address
	consensus common.Address
	chainID   *big.Int
	opts      Options
	logger    *slog.Logger
}

func (c *Contract) CurrentTime(ctx context.Context) (any, error) {
	return c.read(ctx, "get_current_time")
}

func (c *Contract) CurrentPrice(ctx context.Context, symbol string) (any, error) {
	return c.read(ctx, "get_current_price", symbol)
}

func (c *Contract) Balance(ctx context.Context, account string) (any, error) {
	return c.read(ctx, "get_balance", account)
}

func (c *Contract) PredictionDetails(ctx context.Context, id uint64) (any, error) {
	return c.read(ctx, "get_prediction_details", id)
}

func (c *Contract) UserPredictions(ctx context.Context, account string) (any, error) {
	return c.read(ctx, "get_user_predictions", account)
}

func (c *Contract) UserActivePredictions(ctx context.Context, account string) (any, error) {
	return c.read(ctx, "get_user_active_predictions", account)
}

func (c *Contract) Leaderboard(ctx context.Context) (any, error) {
	return c.read(ctx, "get_leaderboard")
}

func (c *Contract) GameStats(ctx context.Context) (any, error) {
	return c.read(ctx, "get_game_stats")
}

func (c *Contract) Deposit(ctx context.Context, amount int64) (domain.TxHandle, error) {
	return c.write(ctx, "deposit", c.account.Hex(), amount)
}

func (c *Contract) PlacePrediction(ctx context.Context, symbol string, dir domain.Direction, amount, durationSeconds int64) (domain.TxHandle, error) {
	return c.write(ctx, "place_prediction", c.account.Hex(), symbol, string(dir), amount, durationSeconds)
}

func (c *Contract) SettlePrediction(ctx context.Context, id uint64) (domain.TxHandle, error) {
	return c.write(ctx, "settle_prediction", c.account.Hex(), id)
}

// read ejecuta un método view con gen_call y decodifica el resultado.
func (c *Contract) read(ctx context.Context, method string, args ...any) (any, error) {
	data, err := encodeTxData(method, args, false)
	if err != nil {
		return nil, fmt.Errorf("genlayer.read %s: %w", method, err)
	}

	params := map[string]any{
		"type":                     "read",
		"to":                       c.address.Hex(),
		"from":                     c.account.Hex(),
		"data":                     hexutil.Encode(data),
		"transaction_hash_variant": "latest-nonfinal",
	}
	var out string
	if err := c.client.call(ctx, &out, "gen_call", params); err != nil {
		return nil, fmt.Errorf("genlayer.read %s: %w: %w", method, domain.ErrRemoteCall, err)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(out, "0x"))
	if err != nil {
		return nil, fmt.Errorf("genlayer.read %s: decode hex: %w", method, err)
	}
	v, err := decodeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("genlayer.read %s: %w", method, err)
	}
	return v, nil
}

// decodeResult interpreta el primer byte como código de resultado.
func decodeResult(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty result: %w", domain.ErrRemoteCall)
	}
	if raw[0] != resultSuccess {
		msg := string(bytes.TrimSpace(raw[1:]))
		return nil, fmt.Errorf("contract error (code %d): %s: %w", raw[0], msg, domain.ErrRemoteCall)
	}
	v, err := DecodeCalldata(raw[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNormalization, err)
	}
	return v, nil
}

// write empaqueta la llamada en addTransaction, la firma y la envía.
func (c *Contract) write(ctx context.Context, method string, args ...any) (domain.TxHandle, error) {
	if c.signer == nil {
		return "", fmt.Errorf("genlayer.write %s: no signer: %w", method, domain.ErrProviderUnavailable)
	}
	if c.signer.Address() != c.account {
		return "", fmt.Errorf("genlayer.write %s: signer %s does not control %s: %w",
			method, c.signer.Address().Hex(), c.account.Hex(), domain.ErrNotConnected)
	}

	txData, err := encodeTxData(method, args, false)
	if err != nil {
		return "", fmt.Errorf("genlayer.write %s: %w", method, err)
	}
	input, err := consensusABI.Pack("addTransaction",
		c.account,
		c.address,
		big.NewInt(c.opts.Validators),
		big.NewInt(c.opts.MaxRotations),
		txData,
	)
	if err != nil {
		return "", fmt.Errorf("genlayer.write %s: pack: %w", method, err)
	}

	eth := c.client.Eth()
	var nonce uint64
	if err := c.client.doWithRetry(ctx, "eth_getTransactionCount", func() error {
		var err error
		nonce, err = eth.PendingNonceAt(ctx, c.account)
		return err
	}); err != nil {
		return "", fmt.Errorf("genlayer.write %s: nonce: %w: %w", method, domain.ErrRemoteCall, err)
	}

	gasPrice, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		gasPrice = big.NewInt(0)
	}
	gas, err := eth.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.account,
		To:       &c.consensus,
		GasPrice: gasPrice,
		Data:     input,
	})
	if err != nil || gas == 0 {
		gas = defaultGasLimit
	}

	tx := types.NewTransaction(nonce, c.consensus, big.NewInt(0), gas, gasPrice, input)
	signed, err := c.signer.SignTx(ctx, tx, c.chainID)
	if err != nil {
		return "", fmt.Errorf("genlayer.write %s: sign tx: %w", method, err)
	}
	rawTx, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("genlayer.write %s: encode tx: %w", method, err)
	}

	var hash string
	if err := c.client.call(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(rawTx)); err != nil {
		return "", fmt.Errorf("genlayer.write %s: send tx: %w: %w", method, domain.ErrRemoteCall, err)
	}
	if hash == "" {
		hash = signed.Hash().Hex()
	}

	c.logger.Info("genlayer: transaction sent", "method", method, "tx", hash, "nonce", nonce)
	return domain.TxHandle(hash), nil
}

// encodeTxData produce rlp([calldata, leaderOnly]).
func encodeTxData(method string, args []any, leaderOnly bool) ([]byte, error) {
	calldata, err := EncodeCalldata(MethodCall(method, args...))
	if err != nil {
		return nil, err
	}
	flag := []byte{0x00}
	if leaderOnly {
		flag = []byte{0x01}
	}
	out, err := rlp.EncodeToBytes([][]byte{calldata, flag})
	if err != nil {
		return nil, fmt.Errorf("rlp: %w", err)
	}
	return out, nil
}
