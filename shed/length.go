package shed

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"unicode/utf8"
)

// CodeLength returns the accounted length of a code item: character count for
// strings, decimal width for numbers, element count for slices and arrays and
// the printed width of anything else.
func CodeLength(item interface{}) int {
	if n, ok := basicLength(item); ok {
		return n
	}
	return utf8.RuneCountInString(fmt.Sprint(item))
}

// LinkLength returns the accounted length of a resource link value. Values
// outside the basic kinds are measured by their JSON encoding.
func LinkLength(value interface{}) (int, error) {
	if n, ok := basicLength(value); ok {
		return n, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func basicLength(v interface{}) (int, bool) {
	switch actual := v.(type) {
	case nil:
		return 0, true
	case string:
		return utf8.RuneCountInString(actual), true
	case int:
		return len(strconv.Itoa(actual)), true
	case int8, int16, int32, int64:
		return len(strconv.FormatInt(reflect.ValueOf(actual).Int(), 10)), true
	case uint, uint8, uint16, uint32, uint64:
		return len(strconv.FormatUint(reflect.ValueOf(actual).Uint(), 10)), true
	case float32:
		return len(strconv.FormatFloat(float64(actual), 'f', -1, 32)), true
	case float64:
		return len(strconv.FormatFloat(actual, 'f', -1, 64)), true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return reflect.ValueOf(v).Len(), true
	}
	return 0, false
}
