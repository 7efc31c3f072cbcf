package domain

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// AnswerKey maps a question index to its correct option. Entries beyond the
// parsed lines, and zero values, are unknown.
type AnswerKey []int

// Lookup returns the correct option for question i, or false if it is unknown.
func (k AnswerKey) Lookup(i int) (int, bool) {
	if i < 0 || i >= len(k) || k[i] == 0 {
		return 0, false
	}
	return k[i], true
}

// Clone returns a copy that shares no storage with k.
func (k AnswerKey) Clone() AnswerKey {
	if k == nil {
		return nil
	}
	return append(AnswerKey(nil), k...)
}

// Known reports whether at least one entry is set.
func (k AnswerKey) Known() bool {
	for _, v := range k {
		if v != 0 {
			return true
		}
	}
	return false
}

// ParseAnswerKey reads one integer per line, line i holding the answer for
// question i. Leading and trailing blank lines are ignored; any other bad line
// fails the whole key.
func ParseAnswerKey(r io.Reader) (AnswerKey, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrAnswerKeyUnavailable, err)
	}

	var key AnswerKey
	scanner := bufio.NewScanner(strings.NewReader(strings.TrimSpace(string(data))))
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: line %d: invalid answer %q", ErrAnswerKeyUnavailable, line, raw)
		}
		key = append(key, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", ErrAnswerKeyUnavailable, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: no answers found", ErrAnswerKeyUnavailable)
	}
	return key, nil
}

// ParseAnswerKeyString is ParseAnswerKey over a string.
func ParseAnswerKeyString(s string) (AnswerKey, error) {
	return ParseAnswerKey(strings.NewReader(s))
}

// String renders the key in the same newline-separated form it is parsed from.
func (k AnswerKey) String() string {
	lines := make([]string, len(k))
	for i, v := range k {
		lines[i] = strconv.Itoa(v)
	}
	return strings.Join(lines, "\n")
}
