package ports

import (
	"context"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

// Wallet es el proveedor de identidad: cuentas, red activa y firma.
type Wallet interface {
	// Accounts devuelve las cuentas ya autorizadas sin pedir nada al usuario.
	// Vacío si el wallet está bloqueado.
	Accounts(ctx context.Context) ([]string, error)

	// RequestAccounts pide autorización (desbloquea) y devuelve las cuentas.
	RequestAccounts(ctx context.Context) ([]string, error)

	// NetworkID devuelve el chain id de la red activa.
	NetworkID(ctx context.Context) (uint64, error)

	// SwitchNetwork pide cambiar a la red indicada.
	SwitchNetwork(ctx context.Context, target uint64) error

	// Events entrega cambios de cuentas y de red.
	Events() <-chan domain.WalletEvent
}
