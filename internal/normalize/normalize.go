// Package normalize converts contract read results into canonical values.
//
// The remote side answers the same logical value in different encodings
// depending on the call path: a native mapping (decoded contract dict),
// a plain record, or a JSON-encoded string. Normalize tries a fixed decode
// table in order and never turns a malformed number into zero.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/shopspring/decimal"
)

// Shape identifica qué variante de la tabla de decodificación aceptó el valor.
type Shape string

const (
	ShapeMapping Shape = "mapping"
	ShapeRecord  Shape = "record"
	ShapeEncoded Shape = "encoded"
)

// Kind es el tipo canónico de un campo.
type Kind int

const (
	KindString Kind = iota
	KindDecimal
	KindInteger
	KindFixedPoint // entero escalado: el valor canónico es raw / Scale
)

// Field describe un campo del valor canónico.
type Field struct {
	Name     string // nombre en la respuesta remota
	Target   string // nombre canónico; vacío = Name
	Kind     Kind
	Scale    int64 // solo KindFixedPoint
	Optional bool
	Default  any
}

func (f Field) target() string {
	if f.Target != "" {
		return f.Target
	}
	return f.Name
}

// Schema describe un valor canónico. Primary es el campo cuya presencia
// identifica un record válido.
type Schema struct {
	Primary string
	Fields  []Field
}

// Canonical es el resultado normalizado, indexado por nombre canónico.
type Canonical map[string]any

// Decimal devuelve el campo como decimal (zero si no existe).
func (c Canonical) Decimal(name string) decimal.Decimal {
	d, _ := c[name].(decimal.Decimal)
	return d
}

// String devuelve el campo como string.
func (c Canonical) String(name string) string {
	s, _ := c[name].(string)
	return s
}

// Equal compara dos valores canónicos; los decimales se comparan por valor.
func (c Canonical) Equal(o Canonical) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		ov, ok := o[k]
		if !ok {
			return false
		}
		if d, ok := v.(decimal.Decimal); ok {
			od, ok := ov.(decimal.Decimal)
			if !ok || !d.Equal(od) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// PriceSchema es el valor devuelto por get_current_price.
var PriceSchema = Schema{
	Primary: "price_usd_cents",
	Fields: []Field{
		{Name: "symbol", Kind: KindString, Optional: true, Default: ""},
		{Name: "price_usd_cents", Target: "price_usd", Kind: KindFixedPoint, Scale: 100},
		{Name: "source", Kind: KindString, Optional: true, Default: "unknown"},
	},
}

type variant struct {
	shape  Shape
	decode func(raw any, s Schema) (map[string]any, bool, error)
}

// decodeTable se prueba en orden; el primer variant que acepta el valor gana.
var decodeTable = []variant{
	{shape: ShapeMapping, decode: fromMapping},
	{shape: ShapeRecord, decode: fromRecord},
	{shape: ShapeEncoded, decode: fromEncoded},
}

// Normalize applies the decode table to raw and converts the accepted
// fields according to the schema. Any failure wraps domain.ErrNormalization.
func Normalize(raw any, s Schema) (Canonical, error) {
	c, _, err := NormalizeShape(raw, s)
	return c, err
}

// NormalizeShape es Normalize pero además informa qué variante aceptó el valor.
func NormalizeShape(raw any, s Schema) (Canonical, Shape, error) {
	for _, v := range decodeTable {
		fields, ok, err := v.decode(raw, s)
		if err != nil {
			return nil, v.shape, fmt.Errorf("normalize: %s: %w", v.shape, err)
		}
		if !ok {
			continue
		}
		c, err := convert(fields, s)
		if err != nil {
			return nil, v.shape, fmt.Errorf("normalize: %s: %w", v.shape, err)
		}
		return c, v.shape, nil
	}
	return nil, "", fmt.Errorf("normalize: unsupported value of type %T: %w", raw, domain.ErrNormalization)
}

func fromMapping(raw any, _ Schema) (map[string]any, bool, error) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true, nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true, nil
	}
	return nil, false, nil
}

func fromRecord(raw any, s Schema) (map[string]any, bool, error) {
	rv := reflect.ValueOf(raw)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false, nil
	}
	if _, ok := raw.(decimal.Decimal); ok {
		return nil, false, nil
	}
	if _, ok := raw.(big.Int); ok {
		return nil, false, nil
	}

	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, false, fmt.Errorf("encode record: %v: %w", err, domain.ErrNormalization)
	}
	m, err := decodeObject(b)
	if err != nil {
		return nil, false, err
	}
	if _, ok := m[s.Primary]; !ok {
		return nil, false, fmt.Errorf("record without %q: %w", s.Primary, domain.ErrNormalization)
	}
	return m, true, nil
}

func fromEncoded(raw any, s Schema) (map[string]any, bool, error) {
	var b []byte
	switch v := raw.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case json.RawMessage:
		b = v
	default:
		return nil, false, nil
	}
	m, err := decodeObject(b)
	if err != nil {
		return nil, false, err
	}
	if _, ok := m[s.Primary]; !ok {
		return nil, false, fmt.Errorf("encoded object without %q: %w", s.Primary, domain.ErrNormalization)
	}
	return m, true, nil
}

func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode object: %v: %w", err, domain.ErrNormalization)
	}
	if m == nil {
		return nil, fmt.Errorf("decode object: null: %w", domain.ErrNormalization)
	}
	return m, nil
}

func convert(fields map[string]any, s Schema) (Canonical, error) {
	out := make(Canonical, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := fields[f.Name]
		if !ok || v == nil {
			if f.Optional {
				out[f.target()] = f.Default
				continue
			}
			return nil, fmt.Errorf("missing field %q: %w", f.Name, domain.ErrNormalization)
		}

		switch f.Kind {
		case KindString:
			out[f.target()] = fmt.Sprint(v)
		case KindDecimal:
			d, err := toDecimal(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			out[f.target()] = d
		case KindInteger:
			d, err := toDecimal(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			if !d.Equal(d.Truncate(0)) {
				return nil, fmt.Errorf("field %q: %s is not an integer: %w", f.Name, d, domain.ErrNormalization)
			}
			out[f.target()] = d.IntPart()
		case KindFixedPoint:
			d, err := toDecimal(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			scale := f.Scale
			if scale <= 0 {
				scale = 1
			}
			out[f.target()] = d.Div(decimal.NewFromInt(scale))
		}
	}
	return out, nil
}

// toDecimal convierte cualquier representación numérica conocida. Lo que no
// es numérico es un fallo, nunca un cero.
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int8:
		return decimal.NewFromInt(int64(n)), nil
	case int16:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(n)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(n)), nil
	case uint16:
		return decimal.NewFromInt(int64(n)), nil
	case uint32:
		return decimal.NewFromInt(int64(n)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), nil
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case *big.Int:
		if n == nil {
			return decimal.Zero, fmt.Errorf("nil big.Int: %w", domain.ErrNormalization)
		}
		return decimal.NewFromBigInt(n, 0), nil
	case big.Int:
		return decimal.NewFromBigInt(&n, 0), nil
	case json.Number:
		return fromString(n.String())
	case string:
		return fromString(n)
	}
	return decimal.Zero, fmt.Errorf("non-numeric value of type %T: %w", v, domain.ErrNormalization)
}

func fromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("non-finite number: %w", domain.ErrNormalization)
	}
	return decimal.NewFromFloat(f), nil
}

func fromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("non-numeric %q: %w", s, domain.ErrNormalization)
	}
	return d, nil
}
