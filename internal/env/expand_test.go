package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandWith(t *testing.T) {
	vars := map[string]string{"HEAP": "2048", "A": "1", "B": "2"}
	lookup := func(key string) string { return vars[key] }

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no expressions", input: "heap: 10", expected: "heap: 10"},
		{name: "single expression", input: "size: ${env.HEAP}", expected: "size: 2048"},
		{name: "multiple expressions", input: "${env.A}-${env.B}-${env.A}", expected: "1-2-1"},
		{name: "unset variable becomes empty", input: "unset=${env.NOTSET}-end", expected: "unset=-end"},
		{name: "malformed missing closing brace", input: "start ${env.A and ${env.B} end", expected: "start ${env.A and 2 end"},
		{name: "prefix only no key", input: "oops ${env.} done", expected: "oops  done"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExpandWith(tc.input, lookup))
		})
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("PROCMEM_TEST_SIZE", "64")
	assert.Equal(t, "size: 64", Expand("size: ${env.PROCMEM_TEST_SIZE}"))
}
