package genlayer

// calldata.go: GenLayer calldata codec.
//
// Every value starts with a ULEB128 header whose low 3 bits are the type tag
// and whose remaining bits carry the payload (integer value or length):
//   special: null=0x00 false=0x08 true=0x10 address=0x18 + 20 bytes
//   pint/nint, bytes, str, array, map (keys sorted, length-prefixed, untagged)

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

const (
	bitsInType = 3

	typeSpecial = 0
	typePInt    = 1
	typeNInt    = 2
	typeBytes   = 3
	typeStr     = 4
	typeArr     = 5
	typeMap     = 6

	specialNull  = 0<<bitsInType | typeSpecial
	specialFalse = 1<<bitsInType | typeSpecial
	specialTrue  = 2<<bitsInType | typeSpecial
	specialAddr  = 3<<bitsInType | typeSpecial
)

var errTruncated = errors.New("calldata: truncated input")

// MethodCall construye el objeto {method, args} que el contrato espera.
func MethodCall(method string, args ...any) map[string]any {
	call := map[string]any{"method": method}
	if len(args) > 0 {
		call["args"] = args
	}
	return call
}

// EncodeCalldata serializa v. Acepta nil, bool, enteros, *big.Int,
// common.Address, []byte, string, slices y maps con keys string.
func EncodeCalldata(v any) ([]byte, error) {
	var out []byte
	if err := encodeValue(&out, v); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeValue(out *[]byte, v any) error {
	switch x := v.(type) {
	case nil:
		*out = append(*out, specialNull)
	case bool:
		if x {
			*out = append(*out, specialTrue)
		} else {
			*out = append(*out, specialFalse)
		}
	case common.Address:
		*out = append(*out, specialAddr)
		*out = append(*out, x.Bytes()...)
	case *common.Address:
		return encodeValue(out, *x)
	case *big.Int:
		encodeInt(out, x)
	case int:
		encodeInt(out, big.NewInt(int64(x)))
	case int32:
		encodeInt(out, big.NewInt(int64(x)))
	case int64:
		encodeInt(out, big.NewInt(x))
	case uint:
		encodeInt(out, new(big.Int).SetUint64(uint64(x)))
	case uint32:
		encodeInt(out, new(big.Int).SetUint64(uint64(x)))
	case uint64:
		encodeInt(out, new(big.Int).SetUint64(x))
	case []byte:
		writeHeader(out, big.NewInt(int64(len(x))), typeBytes)
		*out = append(*out, x...)
	case string:
		writeHeader(out, big.NewInt(int64(len(x))), typeStr)
		*out = append(*out, x...)
	case []any:
		writeHeader(out, big.NewInt(int64(len(x))), typeArr)
		for i, e := range x {
			if err := encodeValue(out, e); err != nil {
				return fmt.Errorf("calldata: element %d: %w", i, err)
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		writeHeader(out, big.NewInt(int64(len(keys))), typeMap)
		for _, k := range keys {
			writeUleb(out, big.NewInt(int64(len(k))))
			*out = append(*out, k...)
			if err := encodeValue(out, x[k]); err != nil {
				return fmt.Errorf("calldata: key %q: %w", k, err)
			}
		}
	default:
		// slices tipados ([]string, []int64...) se codifican como array
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			items := make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
			return encodeValue(out, items)
		}
		return fmt.Errorf("calldata: unsupported type %T", v)
	}
	return nil
}

func encodeInt(out *[]byte, n *big.Int) {
	if n.Sign() >= 0 {
		writeHeader(out, n, typePInt)
		return
	}
	// -n - 1
	abs := new(big.Int).Neg(n)
	abs.Sub(abs, big.NewInt(1))
	writeHeader(out, abs, typeNInt)
}

func writeHeader(out *[]byte, payload *big.Int, tag int64) {
	h := new(big.Int).Lsh(payload, bitsInType)
	h.Or(h, big.NewInt(tag))
	writeUleb(out, h)
}

func writeUleb(out *[]byte, n *big.Int) {
	v := new(big.Int).Set(n)
	mask := big.NewInt(0x7f)
	for {
		b := byte(new(big.Int).And(v, mask).Uint64())
		v.Rsh(v, 7)
		if v.Sign() == 0 {
			*out = append(*out, b)
			return
		}
		*out = append(*out, b|0x80)
	}
}

// DecodeCalldata es la inversa de EncodeCalldata. Los enteros se devuelven
// como *big.Int, las direcciones como common.Address, los maps como
// map[string]any y los arrays como []any.
func DecodeCalldata(b []byte) (any, error) {
	d := decoder{buf: b}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("calldata: %d trailing bytes", len(d.buf)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) uleb() (*big.Int, error) {
	n := new(big.Int)
	var shift uint
	for {
		if d.pos >= len(d.buf) {
			return nil, errTruncated
		}
		b := d.buf[d.pos]
		d.pos++
		n.Or(n, new(big.Int).Lsh(big.NewInt(int64(b&0x7f)), shift))
		if b&0x80 == 0 {
			return n, nil
		}
		shift += 7
	}
}

func (d *decoder) take(n *big.Int) ([]byte, error) {
	if !n.IsInt64() || n.Int64() > int64(len(d.buf)-d.pos) {
		return nil, errTruncated
	}
	end := d.pos + int(n.Int64())
	out := d.buf[d.pos:end]
	d.pos = end
	return out, nil
}

func (d *decoder) value() (any, error) {
	h, err := d.uleb()
	if err != nil {
		return nil, err
	}
	tag := new(big.Int).And(h, big.NewInt(1<<bitsInType-1)).Int64()
	payload := new(big.Int).Rsh(h, bitsInType)

	switch tag {
	case typeSpecial:
		switch h.Int64() {
		case specialNull:
			return nil, nil
		case specialFalse:
			return false, nil
		case specialTrue:
			return true, nil
		case specialAddr:
			raw, err := d.take(big.NewInt(common.AddressLength))
			if err != nil {
				return nil, err
			}
			return common.BytesToAddress(raw), nil
		}
		return nil, fmt.Errorf("calldata: unknown special 0x%x", h.Int64())
	case typePInt:
		return payload, nil
	case typeNInt:
		payload.Add(payload, big.NewInt(1))
		return payload.Neg(payload), nil
	case typeBytes:
		raw, err := d.take(payload)
		if err != nil {
			return nil, err
		}
		return slices.Clone(raw), nil
	case typeStr:
		raw, err := d.take(payload)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case typeArr:
		if !payload.IsInt64() {
			return nil, errTruncated
		}
		n := int(payload.Int64())
		if n > len(d.buf)-d.pos {
			return nil, errTruncated
		}
		out := make([]any, 0, n)
		for range n {
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case typeMap:
		if !payload.IsInt64() {
			return nil, errTruncated
		}
		n := int(payload.Int64())
		if n > len(d.buf)-d.pos {
			return nil, errTruncated
		}
		out := make(map[string]any, n)
		for range n {
			klen, err := d.uleb()
			if err != nil {
				return nil, err
			}
			key, err := d.take(klen)
			if err != nil {
				return nil, err
			}
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			out[string(key)] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("calldata: unknown type tag %d", tag)
}
