package generator

import (
	"math/rand/v2"
	"strconv"
	"time"
)

// Placeholder tokens understood by templates.
const (
	TokenNumbers = "{NUMBERS}"
	TokenCompany = "{COMPANY}"
	TokenYear    = "{YEAR}"
	TokenMonth   = "{MONTH}"
	TokenDay     = "{DAY}"
	TokenRYear   = "{rYEAR}"
	TokenRMonth  = "{rMONTH}"
	TokenRDay    = "{rDAY}"
)

// PlaceholderInput is everything a placeholder map is built from.
type PlaceholderInput struct {
	Numbers   string
	Company   string
	Today     time.Time
	IssueDate time.Time
	// RowFields are the configured extra columns; Row supplies their values.
	RowFields []string
	Row       map[string]string
}

// Placeholders builds the token map for one document. Date parts are not
// zero padded. Every configured row field is present, "" when unknown.
func Placeholders(in PlaceholderInput) map[string]string {
	m := map[string]string{
		TokenNumbers: in.Numbers,
		TokenCompany: in.Company,
		TokenYear:    strconv.Itoa(in.Today.Year()),
		TokenMonth:   strconv.Itoa(int(in.Today.Month())),
		TokenDay:     strconv.Itoa(in.Today.Day()),
		TokenRYear:   strconv.Itoa(in.IssueDate.Year()),
		TokenRMonth:  strconv.Itoa(int(in.IssueDate.Month())),
		TokenRDay:    strconv.Itoa(in.IssueDate.Day()),
	}
	for _, field := range in.RowFields {
		m["{"+field+"}"] = in.Row[field]
	}
	return m
}

// RandomIssueDate returns a date drawn uniformly from the whole days in
// [start, end). end must be after start.
func RandomIssueDate(rng *rand.Rand, start, end time.Time) time.Time {
	days := DaysBetween(start, end)
	if days <= 0 {
		return dateOnly(start)
	}
	return dateOnly(start).AddDate(0, 0, rng.IntN(days))
}

// DaysBetween counts calendar days from start to end, ignoring clock time
// and daylight saving shifts.
func DaysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NewRand returns a PCG-backed source. A zero seed picks a random one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
