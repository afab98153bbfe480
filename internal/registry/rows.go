package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	rowSeparator   = ";;"
	fieldSeparator = "|"
	noneSentinel   = "NONE"
	noPredictions  = "No predictions"
	rowFields      = 7
)

// SplitRows parte la respuesta de get_user_active_predictions en filas.
// El centinela "NONE" o una respuesta vacía devuelven nil.
func SplitRows(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" || text == noneSentinel {
		return nil
	}
	var rows []string
	for _, r := range strings.Split(text, rowSeparator) {
		if r = strings.TrimSpace(r); r != "" {
			rows = append(rows, r)
		}
	}
	return rows
}

// ParseRow interpreta "id|symbol|direction|stake|entryPrice|expiryTime|readyFlag".
// La hora de expiración es ISO UTC; el precio de entrada ya está en dólares.
func ParseRow(row string) (domain.Prediction, error) {
	parts := strings.Split(row, fieldSeparator)
	if len(parts) != rowFields {
		return domain.Prediction{}, fmt.Errorf("expected %d fields, got %d", rowFields, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("id %q: not a number", parts[0])
	}
	if parts[1] == "" {
		return domain.Prediction{}, fmt.Errorf("empty symbol")
	}
	dir, ok := domain.ParseDirection(parts[2])
	if !ok {
		return domain.Prediction{}, fmt.Errorf("direction %q: expected UP or DOWN", parts[2])
	}
	stake, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || stake <= 0 {
		return domain.Prediction{}, fmt.Errorf("stake %q: not a positive integer", parts[3])
	}
	entry, err := decimal.NewFromString(parts[4])
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("entry price %q: not a number", parts[4])
	}
	expiry, err := parseExpiry(parts[5])
	if err != nil {
		return domain.Prediction{}, err
	}

	var remoteReady bool
	switch strings.ToUpper(parts[6]) {
	case "READY":
		remoteReady = true
	case "WAITING":
	default:
		return domain.Prediction{}, fmt.Errorf("ready flag %q: expected READY or WAITING", parts[6])
	}

	return domain.Prediction{
		ID:          id,
		Symbol:      strings.ToUpper(parts[1]),
		Direction:   dir,
		Stake:       stake,
		EntryPrice:  entry,
		ExpiryTime:  expiry,
		RemoteReady: remoteReady,
		Outcome:     domain.OutcomePending,
	}, nil
}

func parseExpiry(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// algunos despliegues devuelven epoch en segundos
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("expiry %q: not an ISO timestamp", s)
}

var (
	summaryField = regexp.MustCompile(`(?i)\b(total|active|won|lost):\s*(\d+)`)
	// formato antiguo: "Total: 3 predictions (Active: 1, Settled: 2)"
	legacyTotal = regexp.MustCompile(`(?i)total:\s*(\d+)\s+predictions?`)
)

// ParseSummary interpreta "Total: 5 | Active: 2 | Won: 2 | Lost: 1".
// "No predictions" es un resumen vacío válido.
func ParseSummary(text string) (domain.PredictionSummary, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, noPredictions) {
		return domain.PredictionSummary{Empty: true}, nil
	}

	var s domain.PredictionSummary
	matches := summaryField.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return s, fmt.Errorf("registry.ParseSummary: unrecognised summary %q: %w", text, domain.ErrNormalization)
	}
	for _, m := range matches {
		n, _ := strconv.Atoi(m[2])
		switch strings.ToLower(m[1]) {
		case "total":
			s.Total = n
		case "active":
			s.Active = n
		case "won":
			s.Won = n
		case "lost":
			s.Lost = n
		}
	}
	if m := legacyTotal.FindStringSubmatch(text); m != nil {
		s.Total, _ = strconv.Atoi(m[1])
	}
	return s, nil
}
