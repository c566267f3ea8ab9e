package csvimport

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// FieldType is the expected shape of a column value
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumeric FieldType = "numeric" // digits only, e.g. platform ids
	TypeBool    FieldType = "bool"
)

// FieldRule validates one column
type FieldRule struct {
	Column    string
	Type      FieldType
	Required  bool
	MaxLength int
	// Unique rejects a value already seen in an earlier row
	Unique bool
	// Normalize maps values before the uniqueness check, e.g. case folding
	Normalize func(string) string
}

// Field starts a rule for column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: normalizeHeader(column), Type: TypeString}}
}

// FieldRuleBuilder builds a FieldRule
type FieldRuleBuilder struct {
	rule FieldRule
}

// Required rejects empty values
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Numeric expects an unsigned decimal integer
func (b *FieldRuleBuilder) Numeric() *FieldRuleBuilder {
	b.rule.Type = TypeNumeric
	return b
}

// Bool expects a value ParseBool accepts
func (b *FieldRuleBuilder) Bool() *FieldRuleBuilder {
	b.rule.Type = TypeBool
	return b
}

// MaxLength caps the value length in runes
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Unique rejects repeated values, compared after normalize when non-nil
func (b *FieldRuleBuilder) Unique(normalize func(string) string) *FieldRuleBuilder {
	b.rule.Unique = true
	b.rule.Normalize = normalize
	return b
}

// Build returns the rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// Validator applies rules to rows in file order
type Validator struct {
	rules  []FieldRule
	seen   map[string]map[string]int // column -> value -> first row
	errors *ErrorCollection
}

// NewValidator creates a validator reporting into errors
func NewValidator(rules []FieldRule, errors *ErrorCollection) *Validator {
	return &Validator{
		rules:  rules,
		seen:   make(map[string]map[string]int),
		errors: errors,
	}
}

// Columns returns the columns the rules require to be present
func (v *Validator) Columns() []string {
	var cols []string
	for _, r := range v.rules {
		if r.Required {
			cols = append(cols, r.Column)
		}
	}
	return cols
}

// ValidateRow checks every rule and returns true when the row is clean
func (v *Validator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		if !v.validateField(row, rule) {
			ok = false
		}
	}
	return ok
}

func (v *Validator) validateField(row *Row, rule FieldRule) bool {
	value := row.Get(rule.Column)
	if value == "" {
		if rule.Required {
			v.errors.AddRequired(row.Line, rule.Column)
			return false
		}
		return true
	}

	switch rule.Type {
	case TypeNumeric:
		if _, err := strconv.ParseUint(value, 10, 64); err != nil {
			v.errors.AddFormat(row.Line, rule.Column, "a numeric id", value)
			return false
		}
	case TypeBool:
		if _, err := strconv.ParseBool(value); err != nil {
			v.errors.AddFormat(row.Line, rule.Column, "true or false", value)
			return false
		}
	}

	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: ErrCodeInvalidLength,
			Message: fmt.Sprintf("length must be at most %d", rule.MaxLength)})
		return false
	}

	if rule.Unique {
		key := value
		if rule.Normalize != nil {
			key = rule.Normalize(value)
		}
		if v.seen[rule.Column] == nil {
			v.seen[rule.Column] = make(map[string]int)
		}
		if first, dup := v.seen[rule.Column][key]; dup {
			v.errors.AddDuplicate(row.Line, rule.Column, value, first)
			return false
		}
		v.seen[rule.Column][key] = row.Line
	}
	return true
}

// ParseBoolDefault parses an optional boolean column, returning def when
// the value is empty. Call it on rows that passed validation.
func ParseBoolDefault(value string, def bool) bool {
	if value == "" {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return b
}
