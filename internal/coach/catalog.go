package coach

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

//go:embed gesture_errors.csv
var gestureErrorsCSV string

// UnknownGesture names a classifier label missing from the catalog.
const UnknownGesture = "Unknown Gesture"

// FallbackAdvice replaces error codes that could not be read from the
// classifier's speech text.
const FallbackAdvice = "Maintain focus and continue with smooth, deliberate movements."

const noError = "No Error"

type gestureEntry struct {
	name   string
	errors map[string]string // E01 -> description
}

var gestures = mustParseCatalog(gestureErrorsCSV)

func mustParseCatalog(data string) map[string]gestureEntry {
	records, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		panic(fmt.Sprintf("coach: parse gesture catalog: %v", err))
	}
	out := make(map[string]gestureEntry)
	for _, rec := range records[1:] {
		if len(rec) != 4 {
			panic(fmt.Sprintf("coach: gesture catalog row %v", rec))
		}
		id, name, code, desc := rec[0], rec[1], rec[2], rec[3]
		g, ok := out[id]
		if !ok {
			g = gestureEntry{name: name, errors: make(map[string]string)}
		}
		g.errors[code] = desc
		out[id] = g
	}
	return out
}

// GestureName resolves a classifier label such as "G01".
func GestureName(id string) string {
	if g, ok := gestures[id]; ok {
		return g.name
	}
	return UnknownGesture
}

// Details is the readable form of one classifier verdict.
type Details struct {
	GestureName string   `json:"gestureName"`
	Errors      []string `json:"errorDescriptions"`
	// Unparsed is set when the speech text talks about errors but no error
	// number could be read from it.
	Unparsed bool `json:"unparsed,omitempty"`
}

var errorListPattern = regexp.MustCompile(`(?i)\berrors?\s*(\d+(?:\s*(?:,|and)\s*\d+)*)`)
var numberPattern = regexp.MustCompile(`\d+`)

// ParseErrorNumbers extracts the numbers following "error" or "errors" in
// text, e.g. "error 3, error 7" or "errors 1, 5". The parse is best effort.
func ParseErrorNumbers(text string) []int {
	var nums []int
	for _, m := range errorListPattern.FindAllStringSubmatch(text, -1) {
		for _, d := range numberPattern.FindAllString(m[1], -1) {
			n, err := strconv.Atoi(d)
			if err == nil {
				nums = append(nums, n)
			}
		}
	}
	return nums
}

// Lookup translates a classifier label and its speech text into a gesture
// name and error descriptions. E00 is never reported.
func Lookup(gestureID, speechText string) Details {
	d := Details{GestureName: GestureName(gestureID), Errors: []string{}}
	nums := ParseErrorNumbers(speechText)

	g, known := gestures[gestureID]
	seen := make(map[string]bool)
	for _, n := range nums {
		code := fmt.Sprintf("E%02d", n)
		if !known || seen[code] {
			continue
		}
		seen[code] = true
		if desc, ok := g.errors[code]; ok && desc != noError {
			d.Errors = append(d.Errors, desc)
		}
	}

	lower := strings.ToLower(speechText)
	mentionsError := strings.Contains(lower, "error")
	if len(d.Errors) == 0 && mentionsError && !strings.Contains(lower, "great form") {
		d.Errors = append(d.Errors, FallbackAdvice)
		d.Unparsed = len(nums) == 0
	}
	return d
}
