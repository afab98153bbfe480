package genlayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

const (
	// DefaultRPCURL es el endpoint público de GenLayer Studio.
	DefaultRPCURL = "https://studio.genlayer.com/api"

	// Studio no documenta límites; 10 req/s con burst 20 cubre un tick completo.
	requestsPerSec = 10
	requestBurst   = 20

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el cliente JSON-RPC de GenLayer con rate limiting y retries.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Dial conecta con el endpoint dado. Si url está vacío usa Studio.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if url == "" {
		url = DefaultRPCURL
	}
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("genlayer: dial %s: %w", url, err)
	}
	return NewClient(rc, logger), nil
}

// NewClient envuelve un rpc.Client ya abierto.
func NewClient(rc *rpc.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
		logger:  logger,
	}
}

// Eth expone el cliente Ethereum sobre la misma conexión.
func (c *Client) Eth() *ethclient.Client { return c.eth }

// Close cierra la conexión RPC.
func (c *Client) Close() { c.rpc.Close() }

// call hace una llamada JSON-RPC con rate limiting y retries.
func (c *Client) call(ctx context.Context, out any, method string, params ...any) error {
	return c.doWithRetry(ctx, method, func() error {
		return c.rpc.CallContext(ctx, out, method, params...)
	})
}

// doWithRetry reintenta errores de transporte con backoff exponencial.
// Los errores JSON-RPC del servidor no se reintentan.
func (c *Client) doWithRetry(ctx context.Context, method string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("%s: %w", method, err)
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		c.logger.Warn("genlayer: rpc call failed, retrying", "method", method, "attempt", attempt+1, "err", err)
		c.sleep(ctx, attempt)
	}
	return fmt.Errorf("%s failed after %d retries: %w", method, maxRetries, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}
	return !errors.Is(err, rpc.ErrClientQuit)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
