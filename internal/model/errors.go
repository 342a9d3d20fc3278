package model

import (
	"fmt"
	"strings"
)

// CardParseError marks a single card that lacked one or more required fields.
// It is fatal to that card only.
type CardParseError struct {
	Page    int
	Index   int
	Missing []string
}

func (e *CardParseError) Error() string {
	return fmt.Sprintf("card %d on page %d: missing %s", e.Index, e.Page, strings.Join(e.Missing, ", "))
}
