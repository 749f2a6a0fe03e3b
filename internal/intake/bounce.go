package intake

import "strings"

// Classifier identifies automated delivery-failure notices. Bounced messages
// must never reach the parser, the task store, or the router.
type Classifier struct {
	senderPrefixes  []string
	subjectContains []string
}

// NewClassifier builds a classifier from lowercase denylists.
func NewClassifier(senderPrefixes, subjectContains []string) *Classifier {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, v := range in {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return &Classifier{
		senderPrefixes:  lower(senderPrefixes),
		subjectContains: lower(subjectContains),
	}
}

// IsBounce reports whether the sender/subject pair looks like a bounce.
func (c *Classifier) IsBounce(sender, subject string) bool {
	s := strings.ToLower(strings.TrimSpace(sender))
	subj := strings.ToLower(strings.TrimSpace(subject))
	for _, p := range c.senderPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	for _, n := range c.subjectContains {
		if strings.Contains(subj, n) {
			return true
		}
	}
	return false
}
