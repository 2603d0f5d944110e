package hub

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeID upper-cases a caller-supplied identifier so that storage and
// lookup agree on a single form. Applied to user ids, group ids, message
// ids and tenant tokens alike.
func NormalizeID(id string) string {
	// cases.Caser is stateful, so build one per call.
	return cases.Upper(language.Und).String(id)
}
