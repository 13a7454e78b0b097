package importapp

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// newRowValidator names fields by their spreadsheet header in error entries
func newRowValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if h := fld.Tag.Get("header"); h != "" {
			return h
		}
		return fld.Name
	})
	return v
}

// rowEntries validates row and returns one entry per violated rule
func rowEntries(v *validator.Validate, row any) []string {
	err := v.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	entries := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		entries = append(entries, entryFor(fe))
	}
	return entries
}

func entryFor(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return fmt.Sprintf("%s or %s is required", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "numeric":
		return field + " must be a number"
	case "number":
		return field + " must be a whole number"
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

// childEntries prefixes the entries of a child row with its sheet row
func childEntries(rowNumber int, entries []string) []string {
	for i, e := range entries {
		entries[i] = fmt.Sprintf("row %d: %s", rowNumber, e)
	}
	return entries
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"02.01.2006",
}

// parseDate accepts ISO dates, a few common layouts and Excel serial dates.
// An empty value yields fallback.
func parseDate(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", s)
		}
		return t.UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// parseDecimal returns zero for an empty value
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseInt returns fallback for an empty value
func parseInt(s string, fallback int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
