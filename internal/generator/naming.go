package generator

import (
	"fmt"
	"strings"
	"time"
)

// forbiddenFilenameChars are removed from names used in file paths.
const forbiddenFilenameChars = `<>:"/\|?*`

var filenameCleaner = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(forbiddenFilenameChars))
	for _, c := range forbiddenFilenameChars {
		pairs = append(pairs, string(c), "")
	}
	return strings.NewReplacer(pairs...)
}()

// CleanFilename removes the characters <>:"/\|?* from s. Everything else,
// including whitespace and non-ASCII text, is kept.
func CleanFilename(s string) string {
	return filenameCleaner.Replace(s)
}

// OutputFileName builds "<company>_<label>_<YYYYMMDD>[_<n>].docx". The
// suffix is added only when n > 0.
func OutputFileName(company, label string, date time.Time, n int) string {
	name := fmt.Sprintf("%s_%s_%s", CleanFilename(company), CleanFilename(label), date.Format("20060102"))
	if n > 0 {
		name += fmt.Sprintf("_%d", n)
	}
	return name + ".docx"
}

// CompanyFromFileName returns the company part of a generated file name:
// everything before the first underscore of the base name, or the whole
// stem when there is none.
func CompanyFromFileName(name string) string {
	if i := strings.IndexByte(name, '_'); i >= 0 {
		return name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
