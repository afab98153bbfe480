package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Presenter escribiendo a un io.Writer.
// En modo table las predicciones activas y el ranking salen como tablas;
// si no, en una línea compacta.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	table   bool
	account string
}

// NewConsole crea un presenter que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un presenter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// SessionStatus imprime el estado de la sesión.
func (c *Console) SessionStatus(_ context.Context, ev domain.SessionStatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.State == domain.SessionConnected {
		c.account = ev.AccountID
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] session %s", stamp(ev.At), ev.State)
	if ev.AccountID != "" {
		fmt.Fprintf(&sb, " account %s", shortAddr(ev.AccountID))
	}
	if ev.NetworkID != 0 {
		fmt.Fprintf(&sb, " network %d", ev.NetworkID)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Reason)
	}
	fmt.Fprintln(c.out, sb.String())
}

// RegistrySnapshot imprime el resumen y las predicciones activas.
func (c *Console) RegistrySnapshot(_ context.Context, snap domain.RegistrySnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := snap.Summary
	header := fmt.Sprintf("[%s] predictions total:%d active:%d won:%d lost:%d win rate:%d%%",
		stamp(snap.At), s.Total, s.Active, s.Won, s.Lost, snap.Stats.WinRate)
	if !snap.RemoteTime.IsZero() {
		header += " | chain time " + snap.RemoteTime.Format("15:04:05")
	}

	if !c.table {
		var sb strings.Builder
		sb.WriteString(header)
		for i, a := range snap.Active {
			if i >= 4 {
				fmt.Fprintf(&sb, " | +%d more", len(snap.Active)-i)
				break
			}
			p := a.Prediction
			fmt.Fprintf(&sb, " | #%d %s %s %s %s %s", p.ID, p.Symbol, p.Direction,
				a.Standing, signedPct(a), readyLabel(a))
		}
		fmt.Fprintln(c.out, sb.String())
		return
	}

	fmt.Fprintln(c.out, "\n"+header)
	if len(snap.Active) == 0 {
		fmt.Fprintln(c.out, "  no active predictions")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Symbol", "Dir", "Stake", "Entry", "Now", "Chg", "Standing", "Payout", "Left")
	for _, a := range snap.Active {
		p := a.Prediction
		now := "-"
		if !a.CurrentPrice.IsZero() {
			now = "$" + a.CurrentPrice.StringFixed(2)
		}
		table.Append(
			fmt.Sprintf("%d", p.ID),
			p.Symbol,
			string(p.Direction),
			fmt.Sprintf("%d", p.Stake),
			"$"+p.EntryPrice.StringFixed(2),
			now,
			signedPct(a),
			string(a.Standing),
			fmt.Sprintf("%d", a.PotentialPayout),
			readyLabel(a),
		)
	}
	table.Render()
}

// SettlementOutcome imprime el resultado de un settle.
func (c *Console) SettlementOutcome(_ context.Context, ev domain.SettlementEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon := "?"
	switch ev.Outcome {
	case domain.OutcomeWon:
		icon = "OK"
	case domain.OutcomeLost:
		icon = "x"
	}
	fmt.Fprintf(c.out, "[%s] settle #%d [%s] %s: %s\n",
		stamp(ev.At), ev.PredictionID, icon, ev.Outcome, oneLine(ev.Message, 120))
}

// FieldUpdate imprime un campo de la vista o su placeholder.
func (c *Console) FieldUpdate(_ context.Context, upd domain.FieldUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if upd.Placeholder != "" {
		fmt.Fprintf(c.out, "[%s] %s: %s\n", stamp(upd.At), upd.Field, upd.Placeholder)
		return
	}

	switch v := upd.Value.(type) {
	case int64:
		fmt.Fprintf(c.out, "[%s] %s: %d points\n", stamp(upd.At), upd.Field, v)
	case domain.PriceQuote:
		fmt.Fprintf(c.out, "[%s] %s: %s $%s (%s)\n", stamp(upd.At), upd.Field, v.Symbol, v.PriceUSD.StringFixed(2), v.Source)
	case domain.UserStats:
		fmt.Fprintf(c.out, "[%s] %s: %d predictions, %d won, %d lost, win rate %d%%\n",
			stamp(upd.At), upd.Field, v.Total, v.Wins, v.Losses, v.WinRate)
	case domain.GameStats:
		fmt.Fprintf(c.out, "[%s] %s: %d predictions by %d players\n", stamp(upd.At), upd.Field, v.Predictions, v.Players)
	case []domain.LeaderboardEntry:
		c.printLeaderboard(upd.At, v)
	default:
		fmt.Fprintf(c.out, "[%s] %s: %v\n", stamp(upd.At), upd.Field, v)
	}
}

func (c *Console) printLeaderboard(at time.Time, entries []domain.LeaderboardEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(c.out, "[%s] leaderboard: no winners yet\n", stamp(at))
		return
	}
	if !c.table {
		parts := make([]string, 0, len(entries))
		for _, e := range entries {
			mark := ""
			if e.IsAccount(c.account) {
				mark = "*"
			}
			parts = append(parts, fmt.Sprintf("%d.%s%s %d", e.Rank, e.Address, mark, e.Wins))
		}
		fmt.Fprintf(c.out, "[%s] leaderboard: %s\n", stamp(at), strings.Join(parts, " | "))
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Rank", "Player", "Wins", "")
	for _, e := range entries {
		you := ""
		if e.IsAccount(c.account) {
			you = "you"
		}
		table.Append(fmt.Sprintf("%d", e.Rank), e.Address, fmt.Sprintf("%d", e.Wins), you)
	}
	table.Render()
}

// PrintReport imprime el diario local de transacciones y settles.
func (c *Console) PrintReport(entries []domain.JournalEntry, settles []domain.SettlementEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) == 0 && len(settles) == 0 {
		fmt.Fprintln(c.out, "\n  No journal entries in range.")
		return
	}

	fmt.Fprintf(c.out, "\n=== TRANSACTIONS (%d) ===\n", len(entries))
	table := tablewriter.NewWriter(c.out)
	table.Header("Submitted", "Kind", "Detail", "Tx", "Status", "Took", "Error")
	for _, e := range entries {
		took := "-"
		if e.FinishedAt != nil {
			took = e.FinishedAt.Sub(e.SubmittedAt).Round(time.Second).String()
		}
		table.Append(
			e.SubmittedAt.Local().Format("01-02 15:04:05"),
			e.Kind,
			e.Detail,
			shortAddr(string(e.Handle)),
			string(e.Status),
			took,
			oneLine(e.Error, 40),
		)
	}
	table.Render()

	if len(settles) == 0 {
		return
	}
	won, lost := 0, 0
	fmt.Fprintf(c.out, "\n=== SETTLEMENTS (%d) ===\n", len(settles))
	st := tablewriter.NewWriter(c.out)
	st.Header("At", "#", "Outcome", "Rule", "Message")
	for _, ev := range settles {
		switch ev.Outcome {
		case domain.OutcomeWon:
			won++
		case domain.OutcomeLost:
			lost++
		}
		st.Append(
			ev.At.Local().Format("01-02 15:04:05"),
			fmt.Sprintf("%d", ev.PredictionID),
			string(ev.Outcome),
			ev.Rule,
			oneLine(ev.Message, 50),
		)
	}
	st.Render()
	fmt.Fprintf(c.out, "  won: %d  lost: %d  unknown: %d\n\n", won, lost, len(settles)-won-lost)
}

// --- helpers ---

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Local().Format("15:04:05")
}

func shortAddr(a string) string {
	if len(a) <= 12 {
		return a
	}
	return a[:6] + "…" + a[len(a)-4:]
}

func signedPct(a domain.ActivePrediction) string {
	if a.CurrentPrice.IsZero() {
		return "-"
	}
	if a.ChangePct.IsNegative() {
		return a.ChangePct.StringFixed(2) + "%"
	}
	return "+" + a.ChangePct.StringFixed(2) + "%"
}

func readyLabel(a domain.ActivePrediction) string {
	if a.Prediction.CanSettle() {
		return "READY"
	}
	if a.TimeLeft <= 0 {
		return "waiting"
	}
	return a.TimeLeft.Round(time.Second).String()
}

func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
