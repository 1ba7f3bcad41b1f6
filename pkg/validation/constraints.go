package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Violation codes, stable across releases so clients can match on them
const (
	CodeNotBlank      = "c1051bb4-d103-4f74-8988-acbcafc7fdc3"
	CodeNotNull       = "ad32d13f-c3d4-423b-909a-857b961eb720"
	CodeTooShort      = "9ff3fdc4-b214-49db-8718-39c315e33d45"
	CodeTooLong       = "d94b19cc-114f-4f44-9cc4-4138e80a87b9"
	CodeNotInRange    = "04b91c99-a946-4221-afc5-e65ebac401eb"
	CodeTooHigh       = "2d28afcb-e32e-45fb-a815-01c431a86a69"
	CodeTooLow        = "76454e69-502c-46c5-9643-f447d837c4d5"
	CodeNoSuchChoice  = "8e179f1b-97aa-4560-a02f-2a8b42e49df7"
	CodeInvalidEmail  = "bd79c0ab-ddba-46cc-a703-a7a4b08de310"
	CodeRegexFailed   = "de1e3db3-5ed4-4941-aae4-59f3667cc3a3"
	CodeNotPositive   = "778b7ae0-84d3-481a-9dec-35fdb64b1d78"
	CodeInvalidNumber = "ba785a8c-82cb-4283-967c-3cf342181b40"
)

// Message used for a missing required query parameter
const MessageNotBlank = "This value should not be blank."

// check validates one value and returns the message and code of a failure
type check func(value any) (message, code string, ok bool)

// emailPattern matches the loose email format
var emailPattern = regexp.MustCompile(`^.+@\S+\.\S+$`)

var (
	patternsMu sync.Mutex
	patterns   = make(map[string]*regexp.Regexp)
)

func compilePattern(expr string) (*regexp.Regexp, error) {
	patternsMu.Lock()
	defer patternsMu.Unlock()
	if re, ok := patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patterns[expr] = re
	return re, nil
}

// newCheck builds the check of a declared constraint
func newCheck(c metadata.Constraint) (check, error) {
	switch c.Name {
	case "notBlank":
		return notBlank, nil
	case "notNull":
		return notNull, nil
	case "length":
		return lengthCheck(c)
	case "range":
		return rangeCheck(c)
	case "choice":
		choices := strings.Split(c.Arg("choices"), "|")
		return choiceCheck(choices), nil
	case "email":
		return emailCheck, nil
	case "regex":
		re, err := compilePattern(c.Arg("pattern"))
		if err != nil {
			return nil, fmt.Errorf("regex constraint: %w", err)
		}
		return regexCheck(re), nil
	case "positive":
		return positive, nil
	default:
		return nil, fmt.Errorf("unknown constraint %q", c.Name)
	}
}

func notBlank(value any) (string, string, bool) {
	switch v := value.(type) {
	case nil:
		return MessageNotBlank, CodeNotBlank, false
	case string:
		if v == "" {
			return MessageNotBlank, CodeNotBlank, false
		}
	case bool:
		if !v {
			return MessageNotBlank, CodeNotBlank, false
		}
	case []any:
		if len(v) == 0 {
			return MessageNotBlank, CodeNotBlank, false
		}
	}
	return "", "", true
}

func notNull(value any) (string, string, bool) {
	if value == nil {
		return "This value should not be null.", CodeNotNull, false
	}
	return "", "", true
}

func lengthCheck(c metadata.Constraint) (check, error) {
	min, max := -1, -1
	if raw := c.Arg("min"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("length min: %w", err)
		}
		min = n
	}
	if raw := c.Arg("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("length max: %w", err)
		}
		max = n
	}

	return func(value any) (string, string, bool) {
		s, ok := value.(string)
		if !ok {
			return "", "", true
		}
		n := utf8.RuneCountInString(s)
		if min >= 0 && n < min {
			return fmt.Sprintf("This value is too short. It should have %d %s or more.", min, characters(min)), CodeTooShort, false
		}
		if max >= 0 && n > max {
			return fmt.Sprintf("This value is too long. It should have %d %s or less.", max, characters(max)), CodeTooLong, false
		}
		return "", "", true
	}, nil
}

func characters(n int) string {
	if n == 1 {
		return "character"
	}
	return "characters"
}

func rangeCheck(c metadata.Constraint) (check, error) {
	var min, max *decimal.Decimal
	if raw := c.Arg("min"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("range min: %w", err)
		}
		min = &d
	}
	if raw := c.Arg("max"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("range max: %w", err)
		}
		max = &d
	}

	return func(value any) (string, string, bool) {
		if value == nil {
			return "", "", true
		}
		d, ok := toDecimal(value)
		if !ok {
			return "This value should be a valid number.", CodeInvalidNumber, false
		}
		switch {
		case min != nil && max != nil && (d.LessThan(*min) || d.GreaterThan(*max)):
			return fmt.Sprintf("This value should be between %s and %s.", min, max), CodeNotInRange, false
		case min != nil && max == nil && d.LessThan(*min):
			return fmt.Sprintf("This value should be %s or more.", min), CodeTooLow, false
		case max != nil && min == nil && d.GreaterThan(*max):
			return fmt.Sprintf("This value should be %s or less.", max), CodeTooHigh, false
		}
		return "", "", true
	}, nil
}

func choiceCheck(choices []string) check {
	allowed := make(map[string]bool, len(choices))
	for _, c := range choices {
		allowed[c] = true
	}
	return func(value any) (string, string, bool) {
		s, ok := value.(string)
		if value == nil || (ok && allowed[s]) {
			return "", "", true
		}
		return "The value you selected is not a valid choice.", CodeNoSuchChoice, false
	}
}

func emailCheck(value any) (string, string, bool) {
	s, ok := value.(string)
	if value == nil || (ok && s == "") || (ok && emailPattern.MatchString(s)) {
		return "", "", true
	}
	return "This value is not a valid email address.", CodeInvalidEmail, false
}

func regexCheck(re *regexp.Regexp) check {
	return func(value any) (string, string, bool) {
		s, ok := value.(string)
		if value == nil || (ok && s == "") || (ok && re.MatchString(s)) {
			return "", "", true
		}
		return "This value is not valid.", CodeRegexFailed, false
	}
}

func positive(value any) (string, string, bool) {
	if value == nil {
		return "", "", true
	}
	d, ok := toDecimal(value)
	if !ok || !d.IsPositive() {
		return "This value should be positive.", CodeNotPositive, false
	}
	return "", "", true
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
