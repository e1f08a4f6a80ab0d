package mailbox

import (
	"strings"

	"golang.org/x/text/cases"
)

// Prefix is the kind of reply/forward marker found at the start of a subject.
type Prefix int

const (
	PrefixNone Prefix = iota
	PrefixReply
	PrefixForward
)

func (p Prefix) String() string {
	switch p {
	case PrefixReply:
		return "Reply"
	case PrefixForward:
		return "Forward"
	default:
		return "None"
	}
}

var prefixKinds = map[string]Prefix{
	"re":  PrefixReply,
	"aw":  PrefixReply,
	"sv":  PrefixReply,
	"fw":  PrefixForward,
	"fwd": PrefixForward,
	"wg":  PrefixForward,
	"tr":  PrefixForward,
}

// splitPrefix removes one leading "Re:", "FW:", "Re[2]:" style marker.
func splitPrefix(subject string) (Prefix, string, bool) {
	s := strings.TrimLeft(subject, " \t")
	colon := strings.IndexByte(s, ':')
	if colon <= 0 || colon > 6 {
		return PrefixNone, subject, false
	}

	tag := s[:colon]
	if open := strings.IndexByte(tag, '['); open > 0 && strings.HasSuffix(tag, "]") {
		tag = tag[:open]
	}

	kind, ok := prefixKinds[cases.Fold().String(strings.TrimSpace(tag))]
	if !ok {
		return PrefixNone, subject, false
	}
	return kind, s[colon+1:], true
}

// ClassifyPrefix returns the kind of the first prefix on the subject.
func ClassifyPrefix(subject string) Prefix {
	kind, _, _ := splitPrefix(subject)
	return kind
}

// StripSubjectPrefixes removes every leading reply/forward marker and surrounding whitespace.
func StripSubjectPrefixes(subject string) string {
	rest := subject
	for {
		_, next, ok := splitPrefix(rest)
		if !ok {
			return strings.TrimSpace(rest)
		}
		rest = next
	}
}
