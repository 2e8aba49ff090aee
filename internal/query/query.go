// Package query reads the date to report on from an interactive prompt.
package query

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"omnisched/internal/model"
)

// ErrInvalidInput is returned when a date field is missing or not an integer.
var ErrInvalidInput = errors.New("query: invalid date input")

const intro = "Enter a date to print out all appointments on that date."

// Prompt prints the prompt sequence to out and reads year, month and day, in
// that order, as whitespace-separated integers from in. Values are not range
// checked.
func Prompt(in io.Reader, out io.Writer) (model.Date, error) {
	var d model.Date
	r := bufio.NewReader(in)

	if _, err := fmt.Fprintln(out, intro); err != nil {
		return d, err
	}

	fields := []struct {
		label  string
		target *int
	}{
		{"year", &d.Year},
		{"month", &d.Month},
		{"day", &d.Day},
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(out, "Enter %s: ", f.label); err != nil {
			return d, err
		}
		if _, err := fmt.Fscan(r, f.target); err != nil {
			return model.Date{}, fmt.Errorf("%w: reading %s: %v", ErrInvalidInput, f.label, err)
		}
	}

	return d, nil
}
