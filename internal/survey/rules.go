package survey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

// WindowRule is a survey window expressed as months before and after the
// anniversary.
type WindowRule struct {
	Label  string
	Before int
	After  int
}

const maxRuleMonths = 12

// window places the rule around one anniversary.
func (r WindowRule) window(anniversary civil.Date) (calendar.Window, error) {
	if r.Before == r.After {
		return calendar.ComputeWindow(anniversary, r.Before)
	}
	return calendar.ComputeRangeWindow(anniversary, r.Before, r.After)
}

var (
	singleRulePattern = regexp.MustCompile(`^(±|-|\+)?(\d{1,2})M$`)
	ruleSplitPattern  = regexp.MustCompile(`\s*[/,;]\s*|\s+`)
	plusMinusReplacer = strings.NewReplacer("+/-", "±", "+-", "±")
)

// ParseWindowRule reads annotations such as "±3M", "-3M", "+3M" or
// "-3M/+6M". A bare "3M" is symmetric.
func ParseWindowRule(s string) (WindowRule, bool) {
	s = plusMinusReplacer.Replace(strings.ToUpper(strings.TrimSpace(s)))
	if s == "" {
		return WindowRule{}, false
	}

	var (
		rule                  WindowRule
		seenBefore, seenAfter bool
	)
	for _, part := range ruleSplitPattern.Split(s, -1) {
		if part == "" {
			continue
		}
		m := singleRulePattern.FindStringSubmatch(part)
		if m == nil {
			return WindowRule{}, false
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n > maxRuleMonths {
			return WindowRule{}, false
		}

		switch m[1] {
		case "-":
			if seenBefore {
				return WindowRule{}, false
			}
			rule.Before, seenBefore = n, true
		case "+":
			if seenAfter {
				return WindowRule{}, false
			}
			rule.After, seenAfter = n, true
		default:
			if seenBefore || seenAfter {
				return WindowRule{}, false
			}
			rule.Before, rule.After = n, n
			seenBefore, seenAfter = true, true
		}
	}
	if !seenBefore && !seenAfter {
		return WindowRule{}, false
	}

	rule.Label = formatRule(rule)
	return rule, true
}

// ParseWindowRules reads the configuration form "ISSC=-3M/+3M,MLC=±3M".
func ParseWindowRules(s string) (map[string]WindowRule, error) {
	rules := make(map[string]WindowRule)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("window rule %q: expected ABBR=RULE", entry)
		}
		rule, ok := ParseWindowRule(value)
		if !ok {
			return nil, fmt.Errorf("window rule %q: cannot parse %q", entry, value)
		}
		rules[ruleKey(key)] = rule
	}
	return rules, nil
}

func formatRule(r WindowRule) string {
	switch {
	case r.Before == r.After:
		return fmt.Sprintf("±%dM", r.Before)
	case r.After == 0:
		return fmt.Sprintf("-%dM", r.Before)
	case r.Before == 0:
		return fmt.Sprintf("+%dM", r.After)
	default:
		return fmt.Sprintf("-%dM/+%dM", r.Before, r.After)
	}
}

func ruleKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// windowRule resolves the window for a certificate: its own annotation, then
// the configured table, then the default margin. It never fails.
func (c *Calculator) windowRule(cert *domain.Certificate) WindowRule {
	if rule, ok := ParseWindowRule(cert.Annotation); ok {
		return rule
	}

	for _, key := range []string{cert.Abbreviation, cert.Name} {
		if key == "" {
			continue
		}
		if rule, ok := c.settings.WindowRules[ruleKey(key)]; ok {
			if rule.Label == "" {
				rule.Label = formatRule(rule)
			}
			return rule
		}
	}

	m := c.settings.MarginMonths
	return WindowRule{
		Label:  fmt.Sprintf("-%dM (default)", m),
		Before: m,
		After:  m,
	}
}
