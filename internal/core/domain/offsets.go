package domain

import (
	"encoding/json"
	"fmt"
)

// Offsets is a half-open [Start, End) range into some referenced text.
// It marshals to and from the two-element JSON array [start, end].
type Offsets struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (o Offsets) Len() int {
	return o.End - o.Start
}

// Valid reports whether the range is non-empty and lies within a text of
// length textLen.
func (o Offsets) Valid(textLen int) bool {
	return o.Start >= 0 && o.Start < o.End && o.End <= textLen
}

// Contains reports whether inner lies entirely within o.
func (o Offsets) Contains(inner Offsets) bool {
	return inner.Start >= o.Start && inner.End <= o.End
}

// Shift returns the range moved by delta.
func (o Offsets) Shift(delta int) Offsets {
	return Offsets{Start: o.Start + delta, End: o.End + delta}
}

// Slice returns text[Start:End], or "" when the range does not fit text.
func (o Offsets) Slice(text string) string {
	if !o.Valid(len(text)) {
		return ""
	}
	return text[o.Start:o.End]
}

func (o Offsets) String() string {
	return fmt.Sprintf("[%d,%d)", o.Start, o.End)
}

// MarshalJSON encodes the range as [start, end].
func (o Offsets) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{o.Start, o.End})
}

// UnmarshalJSON decodes a [start, end] array.
func (o *Offsets) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("offsets: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("offsets: expected 2 elements, got %d", len(pair))
	}
	o.Start, o.End = pair[0], pair[1]
	return nil
}
