package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRanking(t *testing.T) {
	text := `Here are my suggestions:
1. java.util.List.add
2. java.util.List.add
3) java.util.Collections.sort(List)
- java.lang.String.split   best for tokenizing
not an identifier line
java.io.BufferedReader.readLine`

	got := ParseRanking(text, 10)
	assert.Equal(t, []string{
		"java.util.List.add",
		"java.util.Collections.sort",
		"java.lang.String.split",
		"java.io.BufferedReader.readLine",
	}, got)
}

func TestParseRanking_Limit(t *testing.T) {
	text := "java.a.B.c\njava.d.E.f\njava.g.H.i"
	got := ParseRanking(text, 2)
	assert.Equal(t, []string{"java.a.B.c", "java.d.E.f"}, got)
}

func TestParseRanking_Empty(t *testing.T) {
	assert.Empty(t, ParseRanking("no identifiers here", 5))
	assert.Empty(t, ParseRanking("", 5))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	c, err := New(Config{Model: "gpt-4o-mini"})
	assert.NoError(t, err)
	assert.Equal(t, Usage{}, c.TotalUsage())
}
