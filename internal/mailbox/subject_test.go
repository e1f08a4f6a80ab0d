package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripSubjectPrefixes(t *testing.T) {
	tests := []struct {
		subject  string
		expected string
		prefix   Prefix
	}{
		{subject: "Hello", expected: "Hello", prefix: PrefixNone},
		{subject: "RE: Hello", expected: "Hello", prefix: PrefixReply},
		{subject: "re:Hello", expected: "Hello", prefix: PrefixReply},
		{subject: "Re[2]: Hello", expected: "Hello", prefix: PrefixReply},
		{subject: "FW: RE: Fwd: Hello", expected: "Hello", prefix: PrefixForward},
		{subject: "AW: Termin", expected: "Termin", prefix: PrefixReply},
		{subject: "  Fwd:  spaced out  ", expected: "spaced out", prefix: PrefixForward},
		{subject: "Meeting: 10am", expected: "Meeting: 10am", prefix: PrefixNone},
		{subject: "Ticket 12: broken", expected: "Ticket 12: broken", prefix: PrefixNone},
		{subject: "", expected: "", prefix: PrefixNone},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripSubjectPrefixes(tt.subject))
			assert.Equal(t, tt.prefix, ClassifyPrefix(tt.subject))
		})
	}
}

func TestPrefixString(t *testing.T) {
	assert.Equal(t, "None", PrefixNone.String())
	assert.Equal(t, "Reply", PrefixReply.String())
	assert.Equal(t, "Forward", PrefixForward.String())
}
