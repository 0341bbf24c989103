package docx

import (
	"bytes"
	"encoding/xml"
	"html"
	"sort"
	"strings"
)

// span is a half-open byte range.
type span struct{ start, end int }

// textRun locates one w:t element inside a paragraph.
type textRun struct {
	// tag covers the start tag, or the whole element when self-closing.
	tag span
	// content covers the character data between start and end tag.
	content     span
	selfClosing bool
}

// ReplaceParagraphs applies replacements to every innermost w:p element of
// a WordprocessingML part. A paragraph is rewritten only when its
// concatenated w:t text contains at least one replacement key: the
// replaced text is written into the first w:t and every later w:t of that
// paragraph is emptied. All other bytes are copied unchanged.
//
// It returns the new part and the number of paragraphs rewritten.
func ReplaceParagraphs(part []byte, replacements map[string]string) ([]byte, int) {
	if len(replacements) == 0 {
		return part, 0
	}
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		if k != "" {
			keys = append(keys, k)
		}
	}
	// Longer keys first so that a key that is a prefix of another never wins.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, replacements[k])
	}
	replacer := strings.NewReplacer(pairs...)

	var out bytes.Buffer
	last, changed := 0, 0
	for _, p := range innermostParagraphs(part) {
		rewritten, ok := rewriteParagraph(part[p.start:p.end], keys, replacer)
		if !ok {
			continue
		}
		out.Write(part[last:p.start])
		out.Write(rewritten)
		last = p.end
		changed++
	}
	if changed == 0 {
		return part, 0
	}
	out.Write(part[last:])
	return out.Bytes(), changed
}

// ParagraphTexts returns the concatenated w:t text of every innermost
// paragraph, in document order.
func ParagraphTexts(part []byte) []string {
	var texts []string
	for _, p := range innermostParagraphs(part) {
		para := part[p.start:p.end]
		var sb strings.Builder
		for _, r := range textRuns(para) {
			sb.WriteString(html.UnescapeString(string(para[r.content.start:r.content.end])))
		}
		texts = append(texts, sb.String())
	}
	return texts
}

func rewriteParagraph(para []byte, keys []string, replacer *strings.Replacer) ([]byte, bool) {
	runs := textRuns(para)
	if len(runs) == 0 {
		return nil, false
	}

	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(html.UnescapeString(string(para[r.content.start:r.content.end])))
	}
	text := sb.String()

	found := false
	for _, k := range keys {
		if strings.Contains(text, k) {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(replacer.Replace(text)))

	var out bytes.Buffer
	last := 0
	for i, r := range runs {
		out.Write(para[last:r.tag.start])
		switch {
		case i == 0:
			out.WriteString(`<w:t xml:space="preserve">`)
			out.Write(escaped.Bytes())
			if r.selfClosing {
				out.WriteString(`</w:t>`)
				last = r.tag.end
			} else {
				last = r.content.end
			}
		case r.selfClosing:
			out.Write(para[r.tag.start:r.tag.end])
			last = r.tag.end
		default:
			out.Write(para[r.tag.start:r.tag.end])
			last = r.content.end
		}
	}
	out.Write(para[last:])
	return out.Bytes(), true
}

// tagAt parses the tag starting at data[i] == '<'. It returns the element
// name, whether it is an end tag, whether it is self-closing, and the
// offset just past '>'. Comments, processing instructions and CDATA report
// an empty name.
func tagAt(data []byte, i int) (name string, end, selfClosing bool, next int) {
	j := i + 1
	if j < len(data) && (data[j] == '!' || data[j] == '?') {
		closeSeq := ">"
		switch {
		case bytes.HasPrefix(data[j:], []byte("!--")):
			closeSeq = "-->"
		case bytes.HasPrefix(data[j:], []byte("![CDATA[")):
			closeSeq = "]]>"
		case data[j] == '?':
			closeSeq = "?>"
		}
		k := bytes.Index(data[j:], []byte(closeSeq))
		if k < 0 {
			return "", false, false, len(data)
		}
		return "", false, false, j + k + len(closeSeq)
	}
	if j < len(data) && data[j] == '/' {
		end = true
		j++
	}
	n := j
	for n < len(data) && !isNameEnd(data[n]) {
		n++
	}
	name = string(data[j:n])

	// Find the closing '>' outside attribute quotes.
	var quote byte
	k := n
	for ; k < len(data); k++ {
		c := data[k]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if c == '>' {
			break
		}
	}
	if k >= len(data) {
		return name, end, false, len(data)
	}
	selfClosing = !end && k > i && data[k-1] == '/'
	return name, end, selfClosing, k + 1
}

func isNameEnd(c byte) bool {
	return c == ' ' || c == '>' || c == '/' || c == '\t' || c == '\n' || c == '\r'
}

// innermostParagraphs returns the byte ranges of w:p elements that contain
// no nested w:p, in document order.
func innermostParagraphs(data []byte) []span {
	type open struct {
		start    int
		hasChild bool
	}
	var stack []open
	var spans []span

	for i := 0; i < len(data); {
		lt := bytes.IndexByte(data[i:], '<')
		if lt < 0 {
			break
		}
		i += lt
		name, end, selfClosing, next := tagAt(data, i)
		if name == "w:p" {
			switch {
			case end:
				if n := len(stack); n > 0 {
					top := stack[n-1]
					stack = stack[:n-1]
					if !top.hasChild {
						spans = append(spans, span{top.start, next})
					}
				}
			case selfClosing:
				// Empty paragraph, nothing to replace.
			default:
				if n := len(stack); n > 0 {
					stack[n-1].hasChild = true
				}
				stack = append(stack, open{start: i})
			}
		}
		i = next
	}
	return spans
}

// textRuns finds the w:t elements of one paragraph.
func textRuns(para []byte) []textRun {
	var runs []textRun
	for i := 0; i < len(para); {
		lt := bytes.IndexByte(para[i:], '<')
		if lt < 0 {
			break
		}
		i += lt
		name, end, selfClosing, next := tagAt(para, i)
		if name != "w:t" || end {
			i = next
			continue
		}
		if selfClosing {
			runs = append(runs, textRun{
				tag:         span{i, next},
				content:     span{next, next},
				selfClosing: true,
			})
			i = next
			continue
		}
		closeIdx := bytes.Index(para[next:], []byte("</w:t>"))
		if closeIdx < 0 {
			break
		}
		runs = append(runs, textRun{
			tag:     span{i, next},
			content: span{next, next + closeIdx},
		})
		i = next + closeIdx + len("</w:t>")
	}
	return runs
}
