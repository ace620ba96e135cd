package backlog

import "strings"

// Roster resolves free-text owner references against the available owners.
type Roster struct {
	byID    map[string]Owner
	byName  map[string]Owner
	byEmail map[string]Owner
}

// NewRoster indexes owners by id, case-folded name and case-folded email.
// When two owners share a name the first one wins.
func NewRoster(owners []Owner) *Roster {
	r := &Roster{
		byID:    make(map[string]Owner, len(owners)),
		byName:  make(map[string]Owner, len(owners)),
		byEmail: make(map[string]Owner, len(owners)),
	}
	for _, o := range owners {
		if id := strings.TrimSpace(o.ID); id != "" {
			if _, ok := r.byID[id]; !ok {
				r.byID[id] = o
			}
		}
		if name := foldName(o.Name); name != "" {
			if _, ok := r.byName[name]; !ok {
				r.byName[name] = o
			}
		}
		if email := foldName(o.Email); email != "" {
			if _, ok := r.byEmail[email]; !ok {
				r.byEmail[email] = o
			}
		}
	}
	return r
}

// Resolve looks the reference up by id, then name, then email.
func (r *Roster) Resolve(ref string) (Owner, bool) {
	if o, ok := r.byID[strings.TrimSpace(ref)]; ok {
		return o, true
	}
	key := foldName(ref)
	if o, ok := r.byName[key]; ok {
		return o, true
	}
	if o, ok := r.byEmail[key]; ok {
		return o, true
	}
	return Owner{}, false
}

func foldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
