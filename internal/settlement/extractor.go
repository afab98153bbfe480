// Package settlement extracts and classifies the human-readable message
// carried by a settle transaction receipt.
package settlement

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/alejandrodnm/predictsync/internal/normalize"
)

// Rule es una ruta dentro del árbol del receipt. Cada paso es una key
// (string) o un índice de lista (int).
type Rule struct {
	Name string
	Path []any
}

// Rules se prueban en orden; gana el primer string no vacío.
// Una lista vacía en Path significa "el receipt mismo es texto".
var Rules = []Rule{
	{Name: "direct", Path: nil},
	{Name: "leader.genvm_result.data", Path: []any{"consensus_data", "leader_receipt", 0, "genvm_result", "data"}},
	{Name: "leader.genvm_result.result", Path: []any{"consensus_data", "leader_receipt", 0, "genvm_result", "result"}},
	{Name: "leader.result", Path: []any{"consensus_data", "leader_receipt", 0, "result"}},
	{Name: "calldata.result", Path: []any{"data", "calldata", "result"}},
}

// FallbackRule es el nombre usado cuando ninguna regla encontró texto.
const FallbackRule = "fallback"

// Result es el mensaje extraído y su clasificación.
type Result struct {
	Message string
	Outcome domain.Outcome
	Rule    string
}

// Extract walks Rules in order over the receipt tree and classifies the
// first textual message found. If no rule matches, the receipt's own string
// representation is classified instead.
func Extract(receipt any) Result {
	tree, err := normalize.Tree(receipt)
	if err != nil {
		tree = receipt
	}

	for _, r := range Rules {
		v, ok := lookup(tree, r.Path)
		if !ok {
			continue
		}
		if msg, ok := text(v); ok {
			return Result{Message: msg, Outcome: Classify(msg), Rule: r.Name}
		}
	}

	msg := stringify(receipt)
	return Result{Message: msg, Outcome: Classify(msg), Rule: FallbackRule}
}

func lookup(node any, path []any) (any, bool) {
	for _, step := range path {
		switch s := step.(type) {
		case string:
			m, ok := node.(map[string]any)
			if !ok {
				return nil, false
			}
			if node, ok = m[s]; !ok {
				return nil, false
			}
		case int:
			switch n := node.(type) {
			case []any:
				if s < 0 || s >= len(n) {
					return nil, false
				}
				node = n[s]
			case map[string]any:
				// un leader receipt como objeto cuenta como su propia primera entrada
				if s != 0 {
					return nil, false
				}
			default:
				return nil, false
			}
		}
	}
	return node, true
}

func text(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case json.Number:
		s = t.String()
	default:
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// Classify: "won" → WON, "lost" → LOST, sin distinguir mayúsculas.
// Si aparecen los dos, o ninguno, el resultado es UNKNOWN.
func Classify(msg string) domain.Outcome {
	lower := strings.ToLower(msg)
	won := strings.Contains(lower, "won")
	lost := strings.Contains(lower, "lost")
	switch {
	case won && !lost:
		return domain.OutcomeWon
	case lost && !won:
		return domain.OutcomeLost
	}
	return domain.OutcomeUnknown
}

var predictionIDPattern = regexp.MustCompile(`Prediction #(\d+)`)

// PredictionID extrae el id de "Prediction #N" del mensaje de un place.
func PredictionID(msg string) (uint64, bool) {
	m := predictionIDPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
