package feedback

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidDuration is returned when the command names a non-positive
// number of minutes.
var ErrInvalidDuration = errors.New("time must be a positive number of minutes")

// SyntaxError describes an unparseable command with a hint callers can
// surface verbatim.
type SyntaxError struct {
	Input string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("could not parse command %q", e.Input)
}

// Command is one parsed gather-feedback invocation.
//
// Either GroupID is set (collect from a user group) or ChannelWide is
// true (collect from everyone in the invoking channel). Minutes is zero
// when the command named no time limit.
type Command struct {
	GroupID     string
	GroupHandle string
	ChannelWide bool
	Reason      string
	Minutes     int
}

var (
	// Trailing "for 15 minutes" / "in 5 mins" segment. Parsed and
	// stripped first; the sign is captured so a negative duration can be
	// reported as invalid rather than silently unmatched.
	durationRE = regexp.MustCompile(`(?i)\s+(?:for|in)\s+(-?\d+)\s+(?:minutes?|mins?)\s*$`)

	// "from <!subteam^ID|@handle> [on <topic>]"
	groupRE = regexp.MustCompile(`(?i)^(?:from|for)\s+<!subteam\^([A-Z0-9]+)\|@([^>]+)>(?:\s+on\s+(.+))?$`)

	// Channel-wide fallback: "[on] <topic>"
	channelRE = regexp.MustCompile(`(?i)^(?:on\s+)?(.*)$`)
)

// ParseCommand parses the slash-command text. Supported forms:
//
//	from @group [on <topic>] [for <N> minutes]
//	on <topic> [for <N> minutes]
//
// The group mention arrives in the platform's encoded form
// (<!subteam^ID|@handle>). Anything that fails the group form falls
// back to a channel-wide session.
func ParseCommand(text string) (Command, error) {
	rest := strings.TrimSpace(text)

	var cmd Command
	if m := durationRE.FindStringSubmatch(rest); m != nil {
		minutes, err := strconv.Atoi(m[1])
		if err != nil || minutes <= 0 {
			return Command{}, fmt.Errorf("%w: %q", ErrInvalidDuration, m[1])
		}
		cmd.Minutes = minutes
		rest = strings.TrimSpace(rest[:len(rest)-len(m[0])])
	}

	if m := groupRE.FindStringSubmatch(rest); m != nil {
		cmd.GroupID = m[1]
		cmd.GroupHandle = m[2]
		cmd.Reason = strings.TrimSpace(m[3])
		return cmd, nil
	}

	m := channelRE.FindStringSubmatch(rest)
	if m == nil {
		return Command{}, &SyntaxError{Input: text}
	}
	cmd.ChannelWide = true
	cmd.Reason = strings.TrimSpace(m[1])
	return cmd, nil
}
