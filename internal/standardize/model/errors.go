package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel-ошибки для errors.Is у вызывающих.
var (
	ErrInvalidSchema = errors.New("invalid schema")
	ErrInvalidRules  = errors.New("invalid rule table")
)

// SchemaValidationError: схема нарушает инварианты; обработка колонок не начинается.
type SchemaValidationError struct {
	Problems []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed with %d issue(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *SchemaValidationError) Unwrap() error { return ErrInvalidSchema }

// RuleTableValidationError: таблица правил ссылается на неизвестные значения.
type RuleTableValidationError struct {
	Problems []string
}

func (e *RuleTableValidationError) Error() string {
	return fmt.Sprintf("rule table validation failed with %d issue(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *RuleTableValidationError) Unwrap() error { return ErrInvalidRules }
