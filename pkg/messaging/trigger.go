package messaging

import "strings"

// Control words handled locally without invoking the supervisor.
const (
	ControlHelp  = "HELP"
	ControlStart = "START"
	ControlStop  = "STOP"
)

// controlWord reports whether the message is a bare control word.
func controlWord(body string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case ControlHelp:
		return ControlHelp, true
	case ControlStart:
		return ControlStart, true
	case ControlStop:
		return ControlStop, true
	}
	return "", false
}

// shouldProcess implements the channel trigger rule: a message is
// processed iff it contains a configured trigger token or arrives on a
// one-to-one channel. Untriggered group messages are dropped silently.
func shouldProcess(body string, direct bool, tokens []string) bool {
	if direct {
		return true
	}
	lower := strings.ToLower(body)
	for _, token := range tokens {
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// stripTriggers removes trigger tokens from the question so the
// supervisor sees the bare request.
func stripTriggers(body string, tokens []string) string {
	out := body
	for _, token := range tokens {
		idx := strings.Index(strings.ToLower(out), strings.ToLower(token))
		if idx < 0 {
			continue
		}
		out = out[:idx] + out[idx+len(token):]
	}
	return strings.TrimSpace(out)
}
