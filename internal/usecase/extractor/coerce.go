package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

// coerce converts a raw extracted string into a typed Value per the declared
// parameter. Dates accept ISO-8601 first; relative phrases resolve against
// the supplied reference time so results are reproducible.
func coerce(p template.Parameter, raw string, ref time.Time) (binding.Value, error) {
	raw = strings.TrimSpace(raw)

	switch p.Type {
	case template.TypeString:
		return binding.StringValue(raw), nil

	case template.TypeInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return binding.Value{}, fmt.Errorf("%q is not an integer", raw)
		}
		return binding.IntValue(i), nil

	case template.TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return binding.Value{}, fmt.Errorf("%q is not a number", raw)
		}
		return binding.FloatValue(f), nil

	case template.TypeBool:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return binding.Value{}, fmt.Errorf("%q is not a boolean", raw)
		}
		return binding.BoolValue(b), nil

	case template.TypeDate:
		t, err := parseDate(raw, ref)
		if err != nil {
			return binding.Value{}, err
		}
		return binding.DateValue(t), nil

	case template.TypeEnum:
		for _, allowed := range p.AllowedValues {
			if strings.EqualFold(raw, allowed) {
				return binding.EnumValue(allowed), nil
			}
		}
		return binding.Value{}, fmt.Errorf(
			"%q is not one of the allowed values [%s]", raw, strings.Join(p.AllowedValues, ", "))

	default:
		return binding.Value{}, fmt.Errorf("unsupported parameter type %q", p.Type)
	}
}

var relativeRe = regexp.MustCompile(`^last\s+(\d+)\s+(minute|hour|day|week|month)s?$`)

// parseDate handles ISO-8601 layouts, then a fixed vocabulary of relative
// phrases resolved against ref (never wall-clock time).
func parseDate(raw string, ref time.Time) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	switch lower := strings.ToLower(raw); lower {
	case "now":
		return ref, nil
	case "today":
		return truncateDay(ref), nil
	case "yesterday":
		return truncateDay(ref).AddDate(0, 0, -1), nil
	case "last week":
		return truncateDay(ref).AddDate(0, 0, -7), nil
	case "last month":
		return truncateDay(ref).AddDate(0, -1, 0), nil
	case "last year":
		return truncateDay(ref).AddDate(-1, 0, 0), nil
	default:
		if m := relativeRe.FindStringSubmatch(lower); m != nil {
			n, _ := strconv.Atoi(m[1])
			switch m[2] {
			case "minute":
				return ref.Add(-time.Duration(n) * time.Minute), nil
			case "hour":
				return ref.Add(-time.Duration(n) * time.Hour), nil
			case "day":
				return ref.AddDate(0, 0, -n), nil
			case "week":
				return ref.AddDate(0, 0, -7*n), nil
			case "month":
				return ref.AddDate(0, -n, 0), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 date or a recognized relative phrase", raw)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
