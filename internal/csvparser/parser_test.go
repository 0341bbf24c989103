package csvparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReader_Delimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		input     string
	}{
		{"comma", ",", "NUMBERS,COMPANY\n111,Acme\n"},
		{"tab name", "tab", "NUMBERS\tCOMPANY\n111\tAcme\n"},
		{"escaped tab", "\\t", "NUMBERS\tCOMPANY\n111\tAcme\n"},
		{"pipe", "pipe", "NUMBERS|COMPANY\n111|Acme\n"},
		{"semicolon", ";", "NUMBERS;COMPANY\n111;Acme\n"},
		{"empty defaults to comma", "", "NUMBERS,COMPANY\n111,Acme\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ParseReader(strings.NewReader(tt.input), Settings{Delimiter: tt.delimiter})
			require.NoError(t, err)
			assert.Equal(t, []string{"NUMBERS", "COMPANY"}, data.Headers)
			assert.Equal(t, [][]string{{"111", "Acme"}}, data.Rows)
		})
	}
}

func TestParseReader_BOMRaggedAndEmptyRows(t *testing.T) {
	input := "\xEF\xBB\xBF NUMBERS ,COMPANY,FAREN\n111,Acme\n,,\n,Globex,Li\n"

	data, err := ParseReader(strings.NewReader(input), Settings{})
	require.NoError(t, err)

	assert.Equal(t, []string{"NUMBERS", "COMPANY", "FAREN"}, data.Headers)
	assert.Equal(t, [][]string{
		{"111", "Acme", ""},
		{"", "Globex", "Li"},
	}, data.Rows)
}

func TestParseReader_Empty(t *testing.T) {
	_, err := ParseReader(strings.NewReader(""), Settings{})
	require.Error(t, err)
}
