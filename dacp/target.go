// Package dacp forwards remote control commands to the AirPlay receiver.
package dacp

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMalformedTarget is returned when the identity file does not hold exactly two lines.
var ErrMalformedTarget = errors.New("dacp: identity file must contain exactly two lines")

// Target identifies the receiver's DACP endpoint.
type Target struct {
	// DACPID is matched as a substring of control peer instance names.
	DACPID string
	// ActiveRemote is sent verbatim in the Active-Remote header.
	ActiveRemote string
}

// LoadTarget reads the receiver identity file: the DACP id on the first line
// and the Active-Remote token on the second.
func LoadTarget(path string) (Target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Target{}, fmt.Errorf("read identity file: %w", err)
	}
	return ParseTarget(string(raw))
}

// ParseTarget parses identity file contents. Each line is trimmed.
func ParseTarget(contents string) (Target, error) {
	contents = strings.TrimSuffix(strings.ReplaceAll(contents, "\r\n", "\n"), "\n")
	lines := strings.Split(contents, "\n")
	if len(lines) != 2 {
		return Target{}, fmt.Errorf("%w: got %d", ErrMalformedTarget, len(lines))
	}
	target := Target{
		DACPID:       strings.TrimSpace(lines[0]),
		ActiveRemote: strings.TrimSpace(lines[1]),
	}
	if target.DACPID == "" {
		return Target{}, fmt.Errorf("%w: empty dacp id", ErrMalformedTarget)
	}
	return target, nil
}
