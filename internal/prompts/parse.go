package prompts

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"CurriculumSpider/internal/domain"
)

// ErrNoScore is returned when a scoring reply carries no usable score.
var ErrNoScore = errors.New("no score in reply")

var (
	linePrefix  = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)
	scoreNumber = regexp.MustCompile(`(?i)score"?\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
)

// IsRejection reports whether a condense reply is one of the rejection sentinels.
func IsRejection(reply string) bool {
	upper := strings.ToUpper(reply)
	return strings.Contains(upper, SentinelIrrelevant) || strings.Contains(upper, SentinelOffTopic)
}

// QueryLines splits a one-query-per-line reply, removing list numbering and quotes.
// At most max queries are returned; max <= 0 means no limit.
func QueryLines(reply string, max int) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = linePrefix.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// StringArray extracts the first JSON array of strings from a reply.
func StringArray(reply string) ([]string, error) {
	var values []string
	if !decodeFirst(reply, '[', &values) {
		return nil, errors.New("no json array of strings in reply")
	}
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("empty json array in reply")
	}
	return out, nil
}

// Score parses a {"score", "reason"} reply. Scores are clamped to 0..10. When the object does
// not decode, a bare "score: N" is still accepted.
func Score(reply string) (float64, string, error) {
	var parsed struct {
		Score  *float64 `json:"score"`
		Reason string   `json:"reason"`
	}
	if decodeFirst(reply, '{', &parsed) && parsed.Score != nil {
		return clamp(*parsed.Score), strings.TrimSpace(parsed.Reason), nil
	}
	if m := scoreNumber.FindStringSubmatch(reply); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return clamp(v), "", nil
		}
	}
	return 0, "", ErrNoScore
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}

// ExtractIntent returns the intent carried by an agent reply. The reply must contain the
// IntentMarker and a JSON object with non-empty topic and intent.
func ExtractIntent(reply string) (*domain.Intent, bool) {
	if !strings.Contains(reply, IntentMarker) {
		return nil, false
	}
	var intent domain.Intent
	if !decodeFirst(reply, '{', &intent) {
		return nil, false
	}
	intent.Topic = strings.TrimSpace(intent.Topic)
	intent.Intent = strings.TrimSpace(intent.Intent)
	if intent.Topic == "" || intent.Intent == "" {
		return nil, false
	}
	return &intent, true
}

// decodeFirst decodes the first JSON value that starts at an open delimiter in reply. Text after
// the value is ignored, so prose around it and delimiters inside its strings do not matter.
func decodeFirst(reply string, open byte, v any) bool {
	for i := 0; i < len(reply); i++ {
		if reply[i] != open {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(reply[i:])).Decode(&raw); err != nil {
			continue
		}
		if err := json.Unmarshal(raw, v); err == nil {
			return true
		}
	}
	return false
}
