package validation

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ── Error bag ─────────────────────────────────────────────────────────────────

// Errors holds validation messages per field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return e != nil && len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if e == nil {
		return ""
	}
	if msgs := e.Bag[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields returns the failing fields, sorted.
func (e *Errors) Fields() []string {
	if e == nil {
		return nil
	}
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// Error joins the first message of every field.
func (e *Errors) Error() string {
	msgs := make([]string, 0, len(e.Bag))
	for _, f := range e.Fields() {
		msgs = append(msgs, e.First(f))
	}
	return strings.Join(msgs, " ")
}

// ── Rules ─────────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"key": "required|key|max:255", "shared": "boolean"}
type Rules map[string]string

var (
	alphaDashPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// container keys: identifiers, dotted names and package-qualified type keys
	keyPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_.\-/$]*$`)
)

type rule struct {
	ok  func(value string, data map[string]string) bool
	msg func(field string) string
}

// Validator is a compiled rule set, reusable across inputs.
type Validator struct {
	fields   []string
	rules    map[string][]rule
	optional map[string]bool
}

// Compile parses rules. Unknown rule names, bad parameters and invalid
// regular expressions are reported here rather than at check time.
func Compile(rules Rules) (*Validator, error) {
	v := &Validator{
		rules:    make(map[string][]rule, len(rules)),
		optional: make(map[string]bool),
	}
	for field, spec := range rules {
		v.fields = append(v.fields, field)
		for part := range strings.SplitSeq(spec, "|") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			// min:3 → name=min, param=3
			name, param, _ := strings.Cut(part, ":")
			if name == "nullable" || name == "sometimes" {
				v.optional[field] = true
				continue
			}
			r, err := compileRule(name, param)
			if err != nil {
				return nil, fmt.Errorf("validation: field %q: %w", field, err)
			}
			v.rules[field] = append(v.rules[field], r)
		}
	}
	slices.Sort(v.fields)
	return v, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(rules Rules) *Validator {
	v, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return v
}

// Check validates data. It returns nil or an *Errors. Each field stops at
// its first failing rule; nullable and sometimes fields skip their rules
// when empty.
func (v *Validator) Check(data map[string]string) error {
	errs := &Errors{}
	for _, field := range v.fields {
		value := data[field]
		if value == "" && v.optional[field] {
			continue
		}
		for _, r := range v.rules[field] {
			if !r.ok(value, data) {
				errs.add(field, r.msg(field))
				break
			}
		}
	}
	if errs.Has() {
		return errs
	}
	return nil
}

// Validate compiles rules and checks data in one step.
func Validate(data map[string]string, rules Rules) error {
	v, err := Compile(rules)
	if err != nil {
		return err
	}
	return v.Check(data)
}

// message returns a msg func for a format whose only verb is the field name.
func message(format string) func(string) string {
	return func(field string) string { return fmt.Sprintf(format, field) }
}

func compileRule(name, param string) (rule, error) {
	switch name {
	case "required":
		return rule{
			ok:  func(value string, _ map[string]string) bool { return strings.TrimSpace(value) != "" },
			msg: message("The %s field is required."),
		}, nil

	case "numeric":
		return rule{
			ok: func(value string, _ map[string]string) bool {
				_, err := strconv.ParseFloat(value, 64)
				return err == nil
			},
			msg: message("The %s must be a number."),
		}, nil

	case "integer":
		return rule{
			ok: func(value string, _ map[string]string) bool {
				_, err := strconv.Atoi(value)
				return err == nil
			},
			msg: message("The %s must be an integer."),
		}, nil

	case "boolean":
		return rule{
			ok: func(value string, _ map[string]string) bool {
				switch strings.ToLower(value) {
				case "true", "false", "1", "0", "yes", "no":
					return true
				}
				return false
			},
			msg: message("The %s field must be true or false."),
		}, nil

	case "min":
		n, err := strconv.Atoi(param)
		if err != nil {
			return rule{}, fmt.Errorf("rule min needs an integer parameter, got %q", param)
		}
		return rule{
			ok:  func(value string, _ map[string]string) bool { return utf8.RuneCountInString(value) >= n },
			msg: func(field string) string { return fmt.Sprintf("The %s must be at least %d characters.", field, n) },
		}, nil

	case "max":
		n, err := strconv.Atoi(param)
		if err != nil {
			return rule{}, fmt.Errorf("rule max needs an integer parameter, got %q", param)
		}
		return rule{
			ok:  func(value string, _ map[string]string) bool { return utf8.RuneCountInString(value) <= n },
			msg: func(field string) string { return fmt.Sprintf("The %s may not be greater than %d characters.", field, n) },
		}, nil

	case "in", "not_in":
		list := strings.Split(param, ",")
		for i := range list {
			list[i] = strings.TrimSpace(list[i])
		}
		want := name == "in"
		return rule{
			ok:  func(value string, _ map[string]string) bool { return slices.Contains(list, value) == want },
			msg: message("The selected %s is invalid."),
		}, nil

	case "different":
		if param == "" {
			return rule{}, errors.New("rule different needs a field name")
		}
		return rule{
			ok:  func(value string, data map[string]string) bool { return data[param] != value },
			msg: func(field string) string { return fmt.Sprintf("The %s and %s must be different.", field, param) },
		}, nil

	case "alpha_dash":
		return rule{
			ok:  func(value string, _ map[string]string) bool { return alphaDashPattern.MatchString(value) },
			msg: message("The %s may only contain letters, numbers, dashes and underscores."),
		}, nil

	case "key":
		return rule{
			ok:  func(value string, _ map[string]string) bool { return keyPattern.MatchString(value) },
			msg: message("The %s must be a valid container key."),
		}, nil

	case "regex":
		re, err := regexp.Compile(param)
		if err != nil {
			return rule{}, fmt.Errorf("rule regex: %w", err)
		}
		return rule{
			ok:  func(value string, _ map[string]string) bool { return re.MatchString(value) },
			msg: message("The %s format is invalid."),
		}, nil
	}
	return rule{}, fmt.Errorf("unknown rule %q", name)
}
