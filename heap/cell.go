package heap

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/viant/procmem/address"
)

// Kind identifies the state of a cell
type Kind uint8

const (
	KindFree Kind = iota
	KindReserved
	KindValue
)

var kindNames = map[Kind]string{
	KindFree:     "free",
	KindReserved: "reserved",
	KindValue:    "value",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Reservation is the marker written into every cell of an allocated span.
type Reservation struct {
	Base   int
	Length int
}

type terminator struct{}

func (terminator) String() string { return "<terminator>" }

// Terminator is the value written after a stored string. It is not a single
// character, so ReadString stops on it.
var Terminator interface{} = terminator{}

// Cell is one addressable unit of heap storage.
type Cell struct {
	Kind        Kind
	Reservation Reservation
	Value       interface{}
}

// FreeCell returns an empty cell
func FreeCell() Cell {
	return Cell{}
}

// ReservedCell returns a reservation marker for the span [base, base+length)
func ReservedCell(base, length int) Cell {
	return Cell{Kind: KindReserved, Reservation: Reservation{Base: base, Length: length}}
}

// ValueCell returns a cell holding v
func ValueCell(v interface{}) Cell {
	return Cell{Kind: KindValue, Value: v}
}

func (c Cell) IsFree() bool { return c.Kind == KindFree }

func (c Cell) IsReserved() bool { return c.Kind == KindReserved }

func (c Cell) IsValue() bool { return c.Kind == KindValue }

// IsTerminator reports whether the cell holds the string terminator
func (c Cell) IsTerminator() bool {
	if c.Kind != KindValue {
		return false
	}
	_, ok := c.Value.(terminator)
	return ok
}

// Char returns the character held by the cell. Only a rune or a string of
// exactly one rune counts as a character.
func (c Cell) Char() (rune, bool) {
	if c.Kind != KindValue {
		return 0, false
	}
	switch actual := c.Value.(type) {
	case rune:
		return actual, true
	case string:
		if utf8.RuneCountInString(actual) != 1 {
			return 0, false
		}
		r, _ := utf8.DecodeRuneInString(actual)
		return r, true
	}
	return 0, false
}

func (c Cell) String() string {
	switch c.Kind {
	case KindReserved:
		return fmt.Sprintf("reserved{%s,%d}", address.Encode(c.Reservation.Base), c.Reservation.Length)
	case KindValue:
		return fmt.Sprintf("value(%v)", c.Value)
	}
	return "free"
}

type cellJSON struct {
	Kind       string      `json:"kind"`
	Base       string      `json:"base,omitempty"`
	Length     int         `json:"length,omitempty"`
	Value      interface{} `json:"value"`
	Terminator bool        `json:"terminator,omitempty"`
}

// MarshalJSON encodes the cell with its kind tag
func (c Cell) MarshalJSON() ([]byte, error) {
	doc := cellJSON{Kind: c.Kind.String()}
	switch c.Kind {
	case KindReserved:
		doc.Base = address.Encode(c.Reservation.Base)
		doc.Length = c.Reservation.Length
	case KindValue:
		if c.IsTerminator() {
			doc.Terminator = true
		} else if r, ok := c.Value.(rune); ok {
			doc.Value = string(r)
		} else {
			doc.Value = c.Value
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a cell produced by MarshalJSON
func (c *Cell) UnmarshalJSON(data []byte) error {
	var doc cellJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	switch doc.Kind {
	case "", "free":
		*c = FreeCell()
	case "reserved":
		base, err := address.Parse(doc.Base)
		if err != nil {
			return errors.Wrap(err, "heap: invalid reservation base")
		}
		*c = ReservedCell(base, doc.Length)
	case "value":
		if doc.Terminator {
			*c = ValueCell(Terminator)
			return nil
		}
		*c = ValueCell(doc.Value)
	default:
		return errors.Newf("heap: unknown cell kind %q", doc.Kind)
	}
	return nil
}
