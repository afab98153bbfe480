package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote es la última cotización conocida de un símbolo. Se reemplaza entera en cada fetch.
type PriceQuote struct {
	Symbol    string
	PriceUSD  decimal.Decimal
	Source    string
	FetchedAt time.Time
}

// PredictionSummary son los contadores agregados que el contrato devuelve por usuario.
type PredictionSummary struct {
	Total  int
	Active int
	Won    int
	Lost   int
	Empty  bool // "No predictions"
}

// UserStats are the derived win/loss numbers shown to the user.
type UserStats struct {
	Total   int
	Wins    int
	Losses  int
	WinRate int // floor(wins*100/total)
}

// Stats deriva UserStats del resumen.
func (s PredictionSummary) Stats() UserStats {
	st := UserStats{Total: s.Total, Wins: s.Won, Losses: s.Lost}
	if s.Total > 0 {
		st.WinRate = s.Won * 100 / s.Total
	}
	return st
}

// LeaderboardEntry es una fila del ranking de ganadores.
type LeaderboardEntry struct {
	Rank    int
	Address string // truncada por el contrato, p.ej. "0xabcdef0123..."
	Wins    int
}

// IsAccount compara por prefijo de 10 caracteres: el contrato trunca las direcciones.
func (e LeaderboardEntry) IsAccount(account string) bool {
	if len(account) < 10 || len(e.Address) < 10 {
		return false
	}
	return strings.EqualFold(e.Address[:10], account[:10])
}

var leaderboardRow = regexp.MustCompile(`^\s*(\d+)\.\s+(\S+)\s+-\s+(\d+)\s+wins?\s*$`)

// ParseLeaderboard interpreta el texto del ranking. "No winners yet" o vacío → nil.
// Las líneas que no encajan se ignoran.
func ParseLeaderboard(text string) []LeaderboardEntry {
	if strings.TrimSpace(text) == "" || strings.Contains(text, "No winners yet") {
		return nil
	}
	var out []LeaderboardEntry
	for _, line := range strings.Split(text, "\n") {
		m := leaderboardRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rank, _ := strconv.Atoi(m[1])
		wins, _ := strconv.Atoi(m[3])
		out = append(out, LeaderboardEntry{Rank: rank, Address: m[2], Wins: wins})
	}
	return out
}

// GameStats son los contadores globales del juego.
type GameStats struct {
	Predictions int
	Players     int
	CurrentTime string
}

var (
	gamePredictions = regexp.MustCompile(`(?i)(?:total\s+)?predictions:\s*(\d+)`)
	gamePlayers     = regexp.MustCompile(`(?i)(?:total\s+)?players:\s*(\d+)`)
	gameTime        = regexp.MustCompile(`(?i)current\s+time:\s*([^|,]+)`)
)

// ParseGameStats acepta "Predictions: N | Players: M | Current Time: T"
// y el formato antiguo separado por comas.
func ParseGameStats(text string) (GameStats, bool) {
	var gs GameStats
	m := gamePredictions.FindStringSubmatch(text)
	if m == nil {
		return gs, false
	}
	gs.Predictions, _ = strconv.Atoi(m[1])
	if m := gamePlayers.FindStringSubmatch(text); m != nil {
		gs.Players, _ = strconv.Atoi(m[1])
	}
	if m := gameTime.FindStringSubmatch(text); m != nil {
		gs.CurrentTime = strings.TrimSpace(m[1])
	}
	return gs, true
}
