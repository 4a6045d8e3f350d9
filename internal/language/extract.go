package language

import "strings"

// SpeechText selects the part of a tutoring reply that should be spoken
// aloud, driven entirely by the profile's segment rules. When no rule
// matches anything the full reply is returned so the caller always has
// something to synthesize.
func SpeechText(p Profile, reply string) string {
	combined := strings.TrimSpace(strings.Join(extractSegments(p, reply), " "))
	if combined == "" {
		return reply
	}
	return combined
}

func extractSegments(p Profile, reply string) []string {
	lines := strings.Split(reply, "\n")
	var segs []string

	if p.PlainUntilMarker {
		for _, line := range lines {
			if containsAny(line, p.PlainStop) {
				break
			}
			if t := strings.TrimSpace(line); t != "" {
				segs = append(segs, t)
			}
		}
		return segs
	}

	for _, line := range lines {
		t := strings.TrimSpace(line)
		for _, rule := range p.Rules {
			if !strings.HasPrefix(t, rule.Lead) {
				continue
			}
			seg := t[len(rule.Lead):]
			// Sequential cuts end at the earliest stop marker present.
			for _, stop := range rule.Stop {
				if i := strings.Index(seg, stop); i >= 0 {
					seg = seg[:i]
				}
			}
			if seg = strings.TrimSpace(seg); seg != "" {
				segs = append(segs, seg)
			}
			break
		}
	}
	return segs
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
