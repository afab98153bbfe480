package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
)

// Price normaliza la respuesta de get_current_price.
func Price(raw any) (domain.PriceQuote, error) {
	c, err := Normalize(raw, PriceSchema)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.PriceQuote{
		Symbol:    c.String("symbol"),
		PriceUSD:  c.Decimal("price_usd"),
		Source:    c.String("source"),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Integer acepta cualquier representación numérica entera (balance, ids).
func Integer(raw any) (int64, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	d, err := toDecimal(raw)
	if err != nil {
		return 0, fmt.Errorf("normalize.Integer: %w", err)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("normalize.Integer: %s is not an integer: %w", d, domain.ErrNormalization)
	}
	return d.IntPart(), nil
}

// Text devuelve respuestas textuales del contrato (resúmenes, filas, ranking).
func Text(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("normalize.Text: nil value: %w", domain.ErrNormalization)
	}
	return "", fmt.Errorf("normalize.Text: unexpected %T: %w", raw, domain.ErrNormalization)
}

// remoteErrorPrefix marca respuestas de error del contrato, p.ej. "ERROR: datetime not available".
const remoteErrorPrefix = "ERROR:"

// IsRemoteError reports whether a textual contract answer is an error message.
func IsRemoteError(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), remoteErrorPrefix)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time interpreta una marca de tiempo ISO del contrato. Siempre en UTC.
func Time(raw any) (time.Time, error) {
	s, err := Text(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("normalize.Time: %w", err)
	}
	s = strings.TrimSpace(s)
	if IsRemoteError(s) {
		return time.Time{}, fmt.Errorf("normalize.Time: remote error %q: %w", s, domain.ErrNormalization)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("normalize.Time: unparseable %q: %w", s, domain.ErrNormalization)
}

// Tree devuelve raw como árbol genérico (map[string]any / []any / escalares).
// Los valores que no lo son ya pasan por JSON.
func Tree(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, string, bool, float64, json.Number, map[string]any, []any:
		return raw, nil
	case json.RawMessage:
		return decodeTree(v)
	case []byte:
		return decodeTree(v)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize.Tree: %v: %w", err, domain.ErrNormalization)
	}
	return decodeTree(b)
}

func decodeTree(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("normalize.Tree: %v: %w", err, domain.ErrNormalization)
	}
	return v, nil
}
