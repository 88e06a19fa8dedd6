package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `idx,title,answer
0,How to convert string to int in Java,"java.lang.Integer.parseInt,java.lang.Integer.valueOf"
1,Read a file line by line,java.io.BufferedReader.readLine
2,Sort a list of objects,"java.util.Collections.sort,java.util.List.sort"
`

func TestRead(t *testing.T) {
	ds, err := Read("biker-test", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, "biker-test", ds.Name())
	assert.Equal(t, 3, ds.Len())

	rec, err := ds.At(0)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Idx)
	assert.Equal(t, "How to convert string to int in Java", rec.Title)
	require.Len(t, rec.Answer, 2)
	assert.Equal(t, "java.lang.Integer.parseInt", rec.Answer[0].String())

	_, err = ds.At(3)
	assert.Error(t, err)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"bad header", "a,b,c\n0,x,java.util.List.add\n"},
		{"non-numeric idx", "idx,title,answer\nzero,x,java.util.List.add\n"},
		{"empty title", "idx,title,answer\n0,,java.util.List.add\n"},
		{"empty answer", "idx,title,answer\n0,x,\" , \"\n"},
		{"wrong field count", "idx,title,answer\n0,x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read("d", strings.NewReader(tt.csv))
			assert.Error(t, err)
		})
	}
}

func TestGoldAnswers(t *testing.T) {
	ds, err := Read("d", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	gold := ds.GoldAnswers()
	require.Len(t, gold, 3)
	assert.Equal(t, []string{"java.lang.Integer.parseInt", "java.lang.Integer.valueOf"}, gold[0])
	assert.Equal(t, []string{"java.io.BufferedReader.readLine"}, gold[1])
}

func TestByIdx(t *testing.T) {
	ds, err := Read("d", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	rec, ok := ds.ByIdx(2)
	require.True(t, ok)
	assert.Equal(t, "Sort a list of objects", rec.Title)

	_, ok = ds.ByIdx(99)
	assert.False(t, ok)
}

func TestFromRecords(t *testing.T) {
	ds, err := FromRecords("custom", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())

	_, err = FromRecords("  ", nil)
	assert.Error(t, err)
}
