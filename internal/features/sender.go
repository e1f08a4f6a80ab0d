package features

import (
	"fmt"
	"sort"

	"github.com/dotnet/mbmlbook-sub000/internal/contacts"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
)

const otherSender = "Other"

// sender gives each of the user's most frequent correspondents a bucket of their own.
// Everyone else, including unknown senders, falls into a trailing "Other" bucket.
type sender struct {
	base
	topN       int
	configured bool
	positions  map[contacts.PersonID]int
}

func newSender(topN int) *sender {
	if topN < 0 {
		topN = 0
	}
	return &sender{base: base{id: Sender}, topN: topN}
}

func (f *sender) Configured() bool {
	return f.configured
}

// Configure ranks the senders of history by message count. The owner is skipped.
// Calling it again is a no-op.
func (f *sender) Configure(ctx *Context, history []mailbox.MessageID) error {
	if f.configured {
		return nil
	}

	mb := ctx.Mailbox
	owner := mb.Owner()
	counts := make(map[contacts.PersonID]int)
	for _, id := range history {
		p := mb.SenderPerson(id)
		if p == contacts.NoPerson || p == owner {
			continue
		}
		counts[p]++
	}

	ranked := make([]contacts.PersonID, 0, len(counts))
	for p := range counts {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > f.topN {
		ranked = ranked[:f.topN]
	}

	names := make([]string, 0, len(ranked)+1)
	used := map[string]bool{otherSender: true}
	f.positions = make(map[contacts.PersonID]int, len(ranked))
	for i, p := range ranked {
		f.positions[p] = i
		name := mb.Directory().DisplayName(p)
		if used[name] {
			name = fmt.Sprintf("%s #%d", name, i+1)
		}
		used[name] = true
		names = append(names, name)
	}
	names = append(names, otherSender)

	f.buckets = makeBuckets(Sender, names...)
	f.configured = true
	return nil
}

func (f *sender) Compute(ctx *Context, id mailbox.MessageID) []Value {
	if !f.configured {
		return nil
	}
	if i, ok := f.positions[ctx.Mailbox.SenderPerson(id)]; ok {
		return f.oneHot(i)
	}
	return f.oneHot(len(f.buckets) - 1)
}
