package extract

import (
	"strings"
	"time"

	"linkedin-scout/internal/core"
)

var dashReplacer = strings.NewReplacer("–", "-", "—", "-", "−", "-")

// ParseTenure parses a free-text tenure range ("Jan 2022 - Present · 2 yrs
// 3 mos") into month-year endpoints. "present"/"current" means the role is
// ongoing and the end stays nil; a bare year parses with Month 0. Anything
// unparseable comes back nil rather than failing the entry.
func ParseTenure(raw string) (start, end *core.YearMonth, current bool) {
	s := dashReplacer.Replace(raw)

	// Drop the duration qualifier after the separator dot.
	if i := strings.Index(s, "·"); i >= 0 {
		s = s[:i]
	}

	parts := strings.SplitN(s, "-", 2)
	start = parseMonthYear(parts[0])
	if len(parts) < 2 {
		return start, nil, false
	}

	right := strings.TrimSpace(parts[1])
	if presentRe.MatchString(right) {
		return start, nil, true
	}
	return start, parseMonthYear(right), false
}

func parseMonthYear(s string) *core.YearMonth {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range []string{"Jan 2006", "January 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &core.YearMonth{Year: t.Year(), Month: t.Month()}
		}
	}
	if t, err := time.Parse("2006", s); err == nil {
		return &core.YearMonth{Year: t.Year()}
	}
	return nil
}
