// Package format renders raw HL7 values for display. It never validates:
// anything it does not recognise is returned unchanged.
package format

import "regexp"

var (
	phonePattern     = regexp.MustCompile(`^\d{10}$`)
	timestampPattern = regexp.MustCompile(`^\d{14}$`)
	datePattern      = regexp.MustCompile(`^\d{8}$`)
)

// Value formats 10-digit phone numbers, YYYYMMDDHHMMSS timestamps and
// YYYYMMDD dates.
func Value(v string) string {
	switch {
	case v == "":
		return ""
	case phonePattern.MatchString(v):
		return "(" + v[0:3] + ") " + v[3:6] + "-" + v[6:]
	case timestampPattern.MatchString(v):
		return v[0:4] + "-" + v[4:6] + "-" + v[6:8] + " " + v[8:10] + ":" + v[10:12] + ":" + v[12:14]
	case datePattern.MatchString(v):
		return v[0:4] + "-" + v[4:6] + "-" + v[6:8]
	}
	return v
}
