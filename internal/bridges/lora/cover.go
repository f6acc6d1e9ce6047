package lora

import (
	"fmt"
	"strconv"
	"strings"
)

// Cover positions in percent.
const (
	PositionClosed = 0
	PositionOpen   = 100
)

// coverPrefix starts every cover command.
const coverPrefix = "c"

// CoverCommand moves one cover to a position.
type CoverCommand struct {
	// ID is the cover component id on the target device.
	ID int `json:"id"`

	// Position is the target position, 0 (closed) to 100 (open).
	Position int `json:"position"`
}

// ParseCoverCommand parses a "c<id>:<pos>" message.
//
// The message must contain exactly one ':', start with 'c', carry a
// non-negative decimal id and a position between 0 and 100.
//
// Returns:
//   - CoverCommand: The parsed command
//   - error: ErrInvalidCoverCommand describing the first problem found
func ParseCoverCommand(msg string) (CoverCommand, error) {
	parts := strings.Split(msg, ":")
	if len(parts) != 2 {
		return CoverCommand{}, fmt.Errorf("%w: want exactly one ':' in %q", ErrInvalidCoverCommand, msg)
	}
	if !strings.HasPrefix(parts[0], coverPrefix) {
		return CoverCommand{}, fmt.Errorf("%w: missing %q prefix in %q", ErrInvalidCoverCommand, coverPrefix, msg)
	}

	id, err := parseDecimal(parts[0][len(coverPrefix):])
	if err != nil {
		return CoverCommand{}, fmt.Errorf("%w: cover id: %v", ErrInvalidCoverCommand, err)
	}
	pos, err := parseDecimal(parts[1])
	if err != nil {
		return CoverCommand{}, fmt.Errorf("%w: position: %v", ErrInvalidCoverCommand, err)
	}

	cmd := CoverCommand{ID: id, Position: pos}
	if err := cmd.Validate(); err != nil {
		return CoverCommand{}, err
	}
	return cmd, nil
}

// IsCoverCommand reports whether msg looks like a cover command and should be
// handed to ParseCoverCommand: 'c', a digit, then a ':' somewhere after.
func IsCoverCommand(msg string) bool {
	rest, ok := strings.CutPrefix(msg, coverPrefix)
	if !ok || rest == "" || rest[0] < '0' || rest[0] > '9' {
		return false
	}
	return strings.Contains(rest, ":")
}

// Validate checks the id and position ranges.
func (c CoverCommand) Validate() error {
	if c.ID < 0 {
		return fmt.Errorf("%w: negative cover id %d", ErrInvalidCoverCommand, c.ID)
	}
	if c.Position < PositionClosed || c.Position > PositionOpen {
		return fmt.Errorf("%w: position %d out of range 0-100", ErrInvalidCoverCommand, c.Position)
	}
	return nil
}

// String renders the command in wire form, e.g. "c0:100".
func (c CoverCommand) String() string {
	return coverPrefix + strconv.Itoa(c.ID) + ":" + strconv.Itoa(c.Position)
}

// OpenCover returns the command that fully opens a cover.
func OpenCover(id int) CoverCommand { return CoverCommand{ID: id, Position: PositionOpen} }

// CloseCover returns the command that fully closes a cover.
func CloseCover(id int) CoverCommand { return CoverCommand{ID: id, Position: PositionClosed} }

// parseDecimal accepts only ASCII digits, so "+1", "-1" and " 1" are rejected.
func parseDecimal(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("not a decimal number: %q", s)
		}
	}
	return strconv.Atoi(s)
}

// coverAllowList is a set of permitted cover ids. An empty list permits all.
type coverAllowList map[int]struct{}

func newCoverAllowList(ids []int) coverAllowList {
	if len(ids) == 0 {
		return nil
	}
	allowed := make(coverAllowList, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return allowed
}

func (a coverAllowList) permits(id int) bool {
	if a == nil {
		return true
	}
	_, ok := a[id]
	return ok
}
