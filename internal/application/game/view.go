package game

import (
	"maps"
	"slices"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

// Placeholders que se muestran cuando un campo no se pudo normalizar o leer.
const (
	placeholderUnavailable = "unavailable"
	placeholderInvalid     = "invalid data"
)

// View es la última vista publicada. Cada campo se actualiza de forma atómica
// por su propio sub-refresco.
type View struct {
	Balance      int64
	Price        domain.PriceQuote
	Stats        domain.UserStats
	Leaderboard  []domain.LeaderboardEntry
	GameStats    domain.GameStats
	Snapshot     domain.RegistrySnapshot
	Placeholders map[string]string // field → placeholder si el último fetch falló
}

func newView() View {
	return View{Placeholders: make(map[string]string)}
}

func (v View) clone() View {
	out := v
	out.Leaderboard = slices.Clone(v.Leaderboard)
	out.Snapshot.Active = slices.Clone(v.Snapshot.Active)
	out.Placeholders = maps.Clone(v.Placeholders)
	return out
}

// View devuelve una copia de la vista actual.
func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.clone()
}
