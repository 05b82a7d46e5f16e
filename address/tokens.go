package address

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	hexPrefixCode
	hexDigitsCode
	decimalDigitsCode
)

// Token definitions
var (
	whitespaceToken    = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	hexPrefixToken     = parsly.NewToken(hexPrefixCode, "0x", &hexPrefixMatcher{})
	hexDigitsToken     = parsly.NewToken(hexDigitsCode, "HexDigits", &digitsMatcher{accept: isHexDigit})
	decimalDigitsToken = parsly.NewToken(decimalDigitsCode, "DecimalDigits", &digitsMatcher{accept: isDigit})
)

// hexPrefixMatcher matches a case-insensitive "0x" prefix
type hexPrefixMatcher struct{}

func (m *hexPrefixMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize {
		return 0
	}
	if input[pos] != '0' {
		return 0
	}
	if input[pos+1] != 'x' && input[pos+1] != 'X' {
		return 0
	}
	return 2
}

// digitsMatcher matches the longest run of bytes accepted by accept
type digitsMatcher struct {
	accept func(b byte) bool
}

func (m *digitsMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if !m.accept(input[i]) {
			break
		}
		matched++
	}
	return matched
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
