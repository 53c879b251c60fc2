package routing

import (
	"regexp"
	"strings"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/errors"
)

// Operator is a condition comparison
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpRegex    Operator = "regex"
	OpContains Operator = "contains"
)

// Valid reports whether the operator is supported
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte, OpIn, OpNotIn, OpRegex, OpContains:
		return true
	}
	return false
}

// Condition compares one event attribute against a configured value.
// Evaluate never fails: a missing or mismatched attribute is a non-match.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    alert.Value `json:"value"`

	re *regexp.Regexp
}

// NewCondition builds and validates a condition
func NewCondition(field string, op Operator, value alert.Value) (Condition, error) {
	c := Condition{Field: field, Operator: op, Value: value}
	if err := c.compile(); err != nil {
		return Condition{}, err
	}
	return c, nil
}

// MustCondition is NewCondition for statically known conditions
func MustCondition(field string, op Operator, value alert.Value) Condition {
	c, err := NewCondition(field, op, value)
	if err != nil {
		panic(err)
	}
	return c
}

// compile validates the condition and prepares the pattern of regex conditions
func (c *Condition) compile() error {
	if c.Field == "" {
		return errors.NewValidationError("field", "must not be empty", c.Field)
	}
	if !c.Operator.Valid() {
		return errors.Wrapf(errors.ErrUnknownOperator, "%q on field %s", c.Operator, c.Field)
	}

	switch c.Operator {
	case OpRegex:
		pattern, ok := c.Value.Str()
		if !ok {
			return errors.NewValidationError("value", "regex pattern must be a string", c.Value.String())
		}
		// Patterns match at the start of the attribute, not anywhere in it
		re, err := regexp.Compile(`\A(?:` + pattern + `)`)
		if err != nil {
			return errors.NewValidationError("value", "invalid regex: "+err.Error(), pattern)
		}
		c.re = re
	case OpIn, OpNotIn:
		if k := c.Value.Kind(); k != alert.KindList && k != alert.KindString {
			return errors.NewValidationError("value", "membership operand must be a list or string", c.Value.String())
		}
	case OpContains:
		if c.Value.IsNull() {
			return errors.NewValidationError("value", "contains operand must not be null", nil)
		}
	}
	return nil
}

// Evaluate applies the condition to an attribute map
func (c Condition) Evaluate(attrs alert.Attributes) bool {
	field, ok := attrs.Get(c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEq:
		return field.Equal(c.Value)
	case OpNe:
		return !field.Equal(c.Value)
	case OpGt:
		cmp, ok := field.Compare(c.Value)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := field.Compare(c.Value)
		return ok && cmp < 0
	case OpGte:
		cmp, ok := field.Compare(c.Value)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := field.Compare(c.Value)
		return ok && cmp <= 0
	case OpIn:
		return c.member(field)
	case OpNotIn:
		if c.Value.Kind() == alert.KindString && field.Kind() != alert.KindString {
			return false
		}
		return !c.member(field)
	case OpRegex:
		if c.re == nil {
			return false
		}
		return c.re.MatchString(field.String())
	case OpContains:
		if field.Kind() == alert.KindList {
			return field.Contains(c.Value)
		}
		needle, ok := c.Value.Str()
		if !ok {
			needle = c.Value.String()
		}
		return strings.Contains(field.String(), needle)
	}
	return false
}

func (c Condition) member(field alert.Value) bool {
	return c.Value.Contains(field)
}
