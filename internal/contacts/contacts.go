package contacts

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// PersonID identifies a Person inside a Directory.
type PersonID int

// IdentityID identifies an Identity inside a Directory.
type IdentityID int

const (
	// NoPerson is returned when an identity has no resolvable owner.
	NoPerson PersonID = -1
	// NoIdentity marks a missing sender or recipient.
	NoIdentity IdentityID = -1
)

var (
	// ErrUnknownPerson is returned when a person ID is not part of the directory.
	ErrUnknownPerson = errors.New("unknown person")
	// ErrManagerCycle is returned when setting a manager would make the reporting tree cyclic.
	ErrManagerCycle = errors.New("manager relationship would create a cycle")
)

// Uncertain is a value together with how sure we are about it.
type Uncertain[T any] struct {
	Value      T
	Confidence float64
}

// NewUncertain clamps confidence to [0, 1].
func NewUncertain[T any](value T, confidence float64) Uncertain[T] {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Uncertain[T]{Value: value, Confidence: confidence}
}

// Identity is one observable name/email pair for a Person.
type Identity struct {
	ID     IdentityID
	Person PersonID
	Name   Uncertain[string]
	Email  Uncertain[string]
	IsMe   bool
}

// Person is a real-world individual owning one or more identities.
type Person struct {
	ID         PersonID
	Identities []IdentityID
	Manager    PersonID
	Reports    []PersonID
	// Merged is set on a person that was absorbed into another one.
	Merged   bool
	mergedTo PersonID
}

// Directory is the arena owning every Person and Identity of a mailbox.
type Directory struct {
	people     []Person
	identities []Identity
	byEmail    map[string]IdentityID
	byName     map[string]IdentityID
	fold       cases.Caser
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byEmail: make(map[string]IdentityID),
		byName:  make(map[string]IdentityID),
		fold:    cases.Fold(),
	}
}

// Normalize folds case and unicode forms so that equivalent spellings compare equal.
func (d *Directory) Normalize(s string) string {
	return d.fold.String(norm.NFKC.String(strings.TrimSpace(s)))
}

// Resolve finds the identity for a name/email pair, creating a new identity and person if needed.
// Email is the primary key; the display name is only used when no email is known.
// An empty name and email resolve to NoIdentity.
func (d *Directory) Resolve(name, email string) IdentityID {
	nEmail := d.Normalize(email)
	nName := d.Normalize(name)

	if nEmail != "" {
		if id, ok := d.byEmail[nEmail]; ok {
			return id
		}
	} else if nName != "" {
		if id, ok := d.byName[nName]; ok {
			return id
		}
	} else {
		return NoIdentity
	}

	pid := PersonID(len(d.people))
	iid := IdentityID(len(d.identities))

	emailConfidence := 1.0
	nameConfidence := 1.0
	if nEmail == "" {
		emailConfidence = 0
	}
	if nName == "" {
		nameConfidence = 0
	}

	d.identities = append(d.identities, Identity{
		ID:     iid,
		Person: pid,
		Name:   NewUncertain(strings.TrimSpace(name), nameConfidence),
		Email:  NewUncertain(strings.TrimSpace(email), emailConfidence),
	})
	d.people = append(d.people, Person{
		ID:         pid,
		Identities: []IdentityID{iid},
		Manager:    NoPerson,
		mergedTo:   NoPerson,
	})

	if nEmail != "" {
		d.byEmail[nEmail] = iid
	} else {
		d.byName[nName] = iid
	}
	return iid
}

// Identity returns the identity with the given ID.
func (d *Directory) Identity(id IdentityID) (Identity, bool) {
	if id < 0 || int(id) >= len(d.identities) {
		return Identity{}, false
	}
	return d.identities[id], true
}

// Person returns the live person with the given ID, following merges.
func (d *Directory) Person(id PersonID) (Person, bool) {
	id = d.live(id)
	if id == NoPerson {
		return Person{}, false
	}
	return d.people[id], true
}

// PersonOf returns the live owner of an identity.
func (d *Directory) PersonOf(id IdentityID) PersonID {
	ident, ok := d.Identity(id)
	if !ok {
		return NoPerson
	}
	return d.live(ident.Person)
}

// SetNameConfidence updates how sure we are about an identity's display name.
func (d *Directory) SetNameConfidence(id IdentityID, confidence float64) {
	if _, ok := d.Identity(id); !ok {
		return
	}
	d.identities[id].Name = NewUncertain(d.identities[id].Name.Value, confidence)
}

// MarkMe flags an identity as belonging to the mailbox owner.
func (d *Directory) MarkMe(id IdentityID) {
	if _, ok := d.Identity(id); ok {
		d.identities[id].IsMe = true
	}
}

// IsMe reports whether the identity, or any identity of its person, belongs to the mailbox owner.
func (d *Directory) IsMe(id IdentityID) bool {
	pid := d.PersonOf(id)
	if pid == NoPerson {
		return false
	}
	for _, iid := range d.people[pid].Identities {
		if d.identities[iid].IsMe {
			return true
		}
	}
	return false
}

// Me returns every identity flagged as the mailbox owner.
func (d *Directory) Me() []IdentityID {
	var me []IdentityID
	for _, ident := range d.identities {
		if ident.IsMe {
			me = append(me, ident.ID)
		}
	}
	return me
}

// People returns the live (not merged) people.
func (d *Directory) People() []Person {
	result := make([]Person, 0, len(d.people))
	for _, p := range d.people {
		if !p.Merged {
			result = append(result, p)
		}
	}
	return result
}

// IdentityCount returns the number of identities in the directory.
func (d *Directory) IdentityCount() int {
	return len(d.identities)
}

// SetManager records that manager manages person.
func (d *Directory) SetManager(person, manager PersonID) error {
	person = d.live(person)
	manager = d.live(manager)
	if person == NoPerson || manager == NoPerson {
		return ErrUnknownPerson
	}

	if person == manager || d.manages(person, manager) {
		return ErrManagerCycle
	}

	if old := d.live(d.people[person].Manager); old != NoPerson {
		d.people[old].Reports = removePerson(d.people[old].Reports, person)
	}
	d.people[person].Manager = manager
	d.people[manager].Reports = append(d.people[manager].Reports, person)
	return nil
}

// ManagerOf returns the live manager of a person.
func (d *Directory) ManagerOf(person PersonID) PersonID {
	person = d.live(person)
	if person == NoPerson {
		return NoPerson
	}
	return d.live(d.people[person].Manager)
}

// Merge folds drop into keep. Identities and reports of drop move to keep,
// and drop stays addressable as an alias of keep.
func (d *Directory) Merge(keep, drop PersonID) error {
	keep = d.live(keep)
	drop = d.live(drop)
	if keep == NoPerson || drop == NoPerson {
		return ErrUnknownPerson
	}
	if keep == drop {
		return nil
	}

	dropped := &d.people[drop]
	kept := &d.people[keep]

	for _, iid := range dropped.Identities {
		d.identities[iid].Person = keep
	}
	kept.Identities = append(kept.Identities, dropped.Identities...)

	if kept.Manager == drop {
		kept.Manager = NoPerson
	}
	for _, r := range dropped.Reports {
		if r == keep {
			continue
		}
		// r sits above keep, so it cannot also report to the merged person.
		if d.manages(r, keep) {
			d.people[r].Manager = NoPerson
			continue
		}
		d.people[r].Manager = keep
		kept.Reports = append(kept.Reports, r)
	}

	m := d.live(dropped.Manager)
	if m != NoPerson {
		d.people[m].Reports = removePerson(d.people[m].Reports, drop)
	}
	if d.live(kept.Manager) == NoPerson && m != NoPerson && m != keep && !d.manages(keep, m) {
		kept.Manager = m
		d.people[m].Reports = append(d.people[m].Reports, keep)
	}

	dropped.Identities = nil
	dropped.Reports = nil
	dropped.Manager = NoPerson
	dropped.Merged = true
	dropped.mergedTo = keep
	return nil
}

// MergeDuplicates merges people whose identities share an email address, or a display name
// known with at least minConfidence. It returns the number of merges performed.
func (d *Directory) MergeDuplicates(minConfidence float64) int {
	merges := 0
	seenEmail := make(map[string]PersonID)
	seenName := make(map[string]PersonID)

	for _, ident := range d.identities {
		pid := d.live(ident.Person)

		if key := d.Normalize(ident.Email.Value); key != "" {
			if other, ok := seenEmail[key]; ok && d.live(other) != pid {
				if err := d.Merge(other, pid); err == nil {
					merges++
					pid = d.live(other)
				}
			} else if !ok {
				seenEmail[key] = pid
			}
		}

		if ident.Name.Confidence < minConfidence {
			continue
		}
		if key := d.Normalize(ident.Name.Value); key != "" {
			if other, ok := seenName[key]; ok && d.live(other) != pid {
				if err := d.Merge(other, pid); err == nil {
					merges++
				}
			} else if !ok {
				seenName[key] = pid
			}
		}
	}
	return merges
}

// DisplayName returns how a person is shown: their first identity, or "" for unknown people.
func (d *Directory) DisplayName(person PersonID) string {
	p, ok := d.Person(person)
	if !ok || len(p.Identities) == 0 {
		return ""
	}
	return d.identities[p.Identities[0]].String()
}

// String formats an identity the way a mail client would show it.
func (i Identity) String() string {
	if i.Name.Value != "" && i.Email.Value != "" {
		return fmt.Sprintf("%s <%s>", i.Name.Value, i.Email.Value)
	}
	if i.Email.Value != "" {
		return i.Email.Value
	}
	return i.Name.Value
}

func (d *Directory) live(id PersonID) PersonID {
	for id >= 0 && int(id) < len(d.people) {
		if !d.people[id].Merged {
			return id
		}
		id = d.people[id].mergedTo
	}
	return NoPerson
}

// manages reports whether boss is above person in the reporting tree.
func (d *Directory) manages(boss, person PersonID) bool {
	steps := 0
	for m := d.live(d.people[person].Manager); m != NoPerson && steps < len(d.people); m = d.live(d.people[m].Manager) {
		if m == boss {
			return true
		}
		steps++
	}
	return false
}

func removePerson(list []PersonID, id PersonID) []PersonID {
	out := list[:0]
	for _, p := range list {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}
