package address

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/viant/parsly"
)

// Mode selects the canonical form returned by Decode.
type Mode int

const (
	// IndexMode decodes to a raw cell index (int).
	IndexMode Mode = iota
	// HexMode decodes to a canonical "0x" string.
	HexMode
)

// Codec decodes addresses. The zero value is a strict codec.
type Codec struct {
	lenient bool
	logger  *slog.Logger
}

// Option configures a Codec
type Option func(c *Codec)

// WithLenient enables the compatibility mode in which unparseable addresses
// decode to index 0 and a warning is logged instead of an error being returned.
func WithLenient(lenient bool) Option {
	return func(c *Codec) {
		c.lenient = lenient
	}
}

// WithLogger sets the logger used for lenient-mode warnings
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// New creates a codec
func New(opts ...Option) *Codec {
	ret := &Codec{}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Lenient reports whether the codec coerces invalid input to 0.
func (c *Codec) Lenient() bool {
	return c != nil && c.lenient
}

// Encode returns the canonical hex form of a cell index.
func Encode(index int) string {
	return "0x" + strconv.FormatInt(int64(index), 16)
}

// Parse strictly decodes addr into a cell index.
func Parse(addr interface{}) (int, error) {
	return parse(addr)
}

// Index decodes addr into a cell index.
func (c *Codec) Index(addr interface{}) (int, error) {
	index, err := parse(addr)
	if err == nil {
		return index, nil
	}
	if !c.Lenient() {
		return 0, err
	}
	c.log().Warn("unparseable address coerced to 0", "address", addr, "error", err)
	return 0, nil
}

// Hex decodes addr into its canonical hex form.
func (c *Codec) Hex(addr interface{}) (string, error) {
	index, err := c.Index(addr)
	if err != nil {
		return "", err
	}
	return Encode(index), nil
}

// Decode converts addr into an int (IndexMode) or a canonical hex string (HexMode).
func (c *Codec) Decode(addr interface{}, mode Mode) (interface{}, error) {
	switch mode {
	case IndexMode:
		return c.Index(addr)
	case HexMode:
		return c.Hex(addr)
	default:
		return nil, errors.Newf("address: unsupported mode %d", mode)
	}
}

func (c *Codec) log() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func parse(addr interface{}) (int, error) {
	switch actual := addr.(type) {
	case int:
		return nonNegative(int64(actual), addr)
	case int8:
		return nonNegative(int64(actual), addr)
	case int16:
		return nonNegative(int64(actual), addr)
	case int32:
		return nonNegative(int64(actual), addr)
	case int64:
		return nonNegative(actual, addr)
	case uint:
		return fromUnsigned(uint64(actual), addr)
	case uint8:
		return fromUnsigned(uint64(actual), addr)
	case uint16:
		return fromUnsigned(uint64(actual), addr)
	case uint32:
		return fromUnsigned(uint64(actual), addr)
	case uint64:
		return fromUnsigned(actual, addr)
	case float32:
		return fromFloat(float64(actual), addr)
	case float64:
		return fromFloat(actual, addr)
	case string:
		return parseText(actual)
	case []byte:
		return parseText(string(actual))
	case nil:
		return 0, errors.Wrap(ErrInvalidAddress, "nil address")
	default:
		return 0, errors.Wrapf(ErrInvalidAddress, "unsupported type %T", addr)
	}
}

func nonNegative(v int64, addr interface{}) (int, error) {
	if v < 0 || v > math.MaxInt {
		return 0, errors.Wrapf(ErrInvalidAddress, "%v", addr)
	}
	return int(v), nil
}

func fromUnsigned(v uint64, addr interface{}) (int, error) {
	if v > math.MaxInt {
		return 0, errors.Wrapf(ErrInvalidAddress, "%v", addr)
	}
	return int(v), nil
}

func fromFloat(v float64, addr interface{}) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v >= math.MaxInt64 {
		return 0, errors.Wrapf(ErrInvalidAddress, "%v", addr)
	}
	return nonNegative(int64(v), addr)
}

// parseText lexes "[ws]0x<hex>[ws]" or "[ws]<decimal>[ws]"
func parseText(text string) (int, error) {
	cursor := parsly.NewCursor("", []byte(text), 0)
	base := 10
	matched := cursor.MatchAfterOptional(whitespaceToken, hexPrefixToken, decimalDigitsToken)
	switch matched.Code {
	case hexPrefixToken.Code:
		base = 16
		matched = cursor.MatchOne(hexDigitsToken)
		if matched.Code != hexDigitsToken.Code {
			return 0, errors.Wrapf(ErrInvalidAddress, "%q: %v", text, cursor.NewError(hexDigitsToken))
		}
	case decimalDigitsToken.Code:
	default:
		return 0, errors.Wrapf(ErrInvalidAddress, "%q: %v", text, cursor.NewError(decimalDigitsToken))
	}
	digits := matched.Text(cursor)
	cursor.MatchOne(whitespaceToken)
	if cursor.Pos < cursor.InputSize {
		return 0, errors.Wrapf(ErrInvalidAddress, "%q: unexpected trailing input", text)
	}
	value, err := strconv.ParseInt(strings.ToLower(digits), base, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAddress, "%q: %v", text, err)
	}
	return nonNegative(value, text)
}

// ID returns the canonical hex form of an opaque owner id when it parses as an
// address, and its default string form otherwise.
func ID(id interface{}) string {
	if index, err := parse(id); err == nil {
		return Encode(index)
	}
	return fmt.Sprint(id)
}
