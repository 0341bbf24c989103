package docx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/docbatch/internal/testsupport"
)

func TestReplaceParagraphs_SplitToken(t *testing.T) {
	part := []byte(testsupport.DocumentXML(
		`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Numbers: {NUM</w:t></w:r><w:r><w:t>BERS}</w:t></w:r><w:r><w:t xml:space="preserve"> end</w:t></w:r></w:p>`,
	))

	out, n := ReplaceParagraphs(part, map[string]string{"{NUMBERS}": "111、222"})
	require.Equal(t, 1, n)

	texts := ParagraphTexts(out)
	require.Len(t, texts, 1)
	assert.Equal(t, "Numbers: 111、222 end", texts[0])

	// The replaced text lives in the first run; formatting runs survive.
	assert.Contains(t, string(out), `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Numbers: 111、222 end</w:t>`)
	assert.Contains(t, string(out), `<w:r><w:t></w:t></w:r>`)
}

func TestReplaceParagraphs_UntouchedParagraphsAreByteIdentical(t *testing.T) {
	plain := `<w:p w:rsidR="00AB"><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>Hello &amp; welcome</w:t></w:r><w:r><w:tab/></w:r></w:p>`
	withToken := testsupport.Paragraph("Dear {COMPANY}")
	part := []byte(testsupport.DocumentXML(plain + withToken + plain))

	out, n := ReplaceParagraphs(part, map[string]string{"{COMPANY}": "Acme"})
	require.Equal(t, 1, n)

	expected := testsupport.DocumentXML(plain + `<w:p><w:r><w:t xml:space="preserve">Dear Acme</w:t></w:r></w:p>` + plain)
	assert.Equal(t, expected, string(out))
}

func TestReplaceParagraphs_NoTokensReturnsInput(t *testing.T) {
	part := []byte(testsupport.DocumentXML(testsupport.Paragraph("no tokens here")))
	out, n := ReplaceParagraphs(part, map[string]string{"{X}": "y"})
	assert.Equal(t, 0, n)
	assert.Equal(t, part, out)
}

func TestReplaceParagraphs_EscapesValues(t *testing.T) {
	part := []byte(testsupport.DocumentXML(testsupport.Paragraph("{COMPANY}")))
	out, _ := ReplaceParagraphs(part, map[string]string{"{COMPANY}": `A&B <Ltd>`})
	assert.Contains(t, string(out), "A&amp;B &lt;Ltd&gt;")
	assert.Equal(t, []string{"A&B <Ltd>"}, ParagraphTexts(out))
}

func TestReplaceParagraphs_EscapedTokenText(t *testing.T) {
	// Entities in the source are decoded before matching.
	part := []byte(testsupport.DocumentXML(testsupport.Paragraph("R&amp;D {YEAR}")))
	out, n := ReplaceParagraphs(part, map[string]string{"{YEAR}": "2024"})
	require.Equal(t, 1, n)
	assert.Equal(t, []string{"R&D 2024"}, ParagraphTexts(out))
}

func TestReplaceParagraphs_MultipleTokensAndNoRescan(t *testing.T) {
	part := []byte(testsupport.DocumentXML(testsupport.Paragraph("{YEAR}年{MONTH}月{DAY}日 {rYEAR}")))
	out, _ := ReplaceParagraphs(part, map[string]string{
		"{YEAR}":  "2024",
		"{MONTH}": "{DAY}",
		"{DAY}":   "5",
		"{rYEAR}": "2022",
	})
	assert.Equal(t, []string{"2024年{DAY}月5日 2022"}, ParagraphTexts(out))
}

func TestReplaceParagraphs_SelfClosingAndSimilarTags(t *testing.T) {
	para := `<w:p><w:r><w:t/></w:r><w:r><w:tab/><w:t>{A}</w:t></w:r><w:tbl/></w:p>`
	out, n := ReplaceParagraphs([]byte(testsupport.DocumentXML(para)), map[string]string{"{A}": "x"})
	require.Equal(t, 1, n)
	assert.Contains(t, string(out), `<w:r><w:t xml:space="preserve">x</w:t></w:r><w:r><w:tab/><w:t></w:t></w:r><w:tbl/>`)
}

func TestReplaceParagraphs_NestedParagraphs(t *testing.T) {
	// A text box paragraph nested inside an outer paragraph.
	inner := testsupport.Paragraph("inner {A}")
	outer := `<w:p><w:r><w:t>outer {A}</w:t></w:r><w:r><w:txbxContent>` + inner + `</w:txbxContent></w:r></w:p>`
	out, n := ReplaceParagraphs([]byte(testsupport.DocumentXML(outer)), map[string]string{"{A}": "x"})
	require.Equal(t, 1, n)
	assert.Contains(t, string(out), "inner x")
	assert.Contains(t, string(out), "outer {A}")
}

func TestReplaceParagraphs_AttributeWithGreaterThan(t *testing.T) {
	para := `<w:p><w:r><w:t foo="a>b">{A}</w:t></w:r></w:p>`
	out, n := ReplaceParagraphs([]byte(para), map[string]string{"{A}": "x"})
	require.Equal(t, 1, n)
	assert.Equal(t, `<w:p><w:r><w:t xml:space="preserve">x</w:t></w:r></w:p>`, string(out))
}
