package genlayer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/normalize"
	"github.com/alejandrodnm/predictsync/internal/settlement"
)

// TransactionStatus implementa ports.TransactionStatusSource con
// eth_getTransactionByHash. Una transacción que el nodo aún no conoce se
// reporta como PENDING.
func (c *Client) TransactionStatus(ctx context.Context, handle domain.TxHandle) (domain.TxReport, error) {
	var raw json.RawMessage
	if err := c.call(ctx, &raw, "eth_getTransactionByHash", string(handle)); err != nil {
		return domain.TxReport{}, fmt.Errorf("genlayer.TransactionStatus: %w: %w", domain.ErrRemoteCall, err)
	}

	report := domain.TxReport{Handle: handle, Status: domain.TxStatusPending}
	if len(raw) == 0 || string(raw) == "null" {
		return report, nil
	}

	tree, err := normalize.Tree(raw)
	if err != nil {
		return domain.TxReport{}, fmt.Errorf("genlayer.TransactionStatus: %w", err)
	}
	tx, ok := tree.(map[string]any)
	if !ok {
		return domain.TxReport{}, fmt.Errorf("genlayer.TransactionStatus: unexpected %T: %w", tree, domain.ErrNormalization)
	}

	report.Raw = tx
	report.Status = statusOf(tx)
	if report.Status.IsFailure() {
		report.Reason = settlement.Extract(tx).Message
	}
	return report, nil
}

// statusOf prefiere el nombre del status; si solo hay código, lo traduce.
func statusOf(tx map[string]any) domain.TxStatus {
	if name, ok := tx["status_name"].(string); ok && name != "" {
		return domain.ParseTxStatus(name)
	}
	v, ok := tx["status"]
	if !ok || v == nil {
		return domain.TxStatusPending
	}
	return domain.ParseTxStatus(fmt.Sprint(v))
}
