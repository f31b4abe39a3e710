package source

import "strings"

// Messages groups lines into messages. A message starts at every MSH line
// and continues while lines look like segments using the same field
// separator; anything else ends it. Lines outside a message are dropped.
func Messages(lines []string) []string {
	var out []string
	var current []string
	var sep byte

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\r"))
		}
		current = nil
	}

	for _, raw := range lines {
		line := strings.TrimFunc(raw, isFraming)
		switch {
		case isHeader(line):
			flush()
			sep = line[3]
			current = []string{line}
		case current != nil && isSegment(line, sep):
			current = append(current, line)
		default:
			flush()
		}
	}
	flush()
	return out
}

// SplitLines splits text on CR LF, LF or CR.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func isHeader(line string) bool {
	return len(line) > 3 && line[:3] == "MSH" && isSeparator(line[3])
}

// isSegment reports whether line starts with a three character segment name
// followed by sep.
func isSegment(line string, sep byte) bool {
	if len(line) < 4 || line[3] != sep {
		return false
	}
	for i := 0; i < 3; i++ {
		c := line[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return line[0] >= 'A' && line[0] <= 'Z'
}

func isSeparator(c byte) bool {
	return c > ' ' && c < 0x7f &&
		!(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z')
}

// isFraming trims whitespace and MLLP block characters around a line.
func isFraming(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == 0x0b || r == 0x1c
}
