// Package roster maps actor identities to their curation roles.
package roster

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/herbarium-review/internal/model"
)

type file struct {
	Actors []model.Actor `yaml:"actors"`
}

// Roster is an immutable actor directory. Safe for concurrent use.
type Roster struct {
	actors map[string]model.Actor
}

// New builds a roster from actors. Duplicate ids, blank ids and unknown
// roles are rejected.
func New(actors ...model.Actor) (*Roster, error) {
	r := &Roster{actors: make(map[string]model.Actor, len(actors))}
	for _, a := range actors {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, eris.New("roster: actor id is required")
		}
		if _, dup := r.actors[a.ID]; dup {
			return nil, eris.Errorf("roster: duplicate actor %q", a.ID)
		}
		for _, role := range a.Roles {
			switch role {
			case model.RoleCurator, model.RoleEntrant, model.RoleSupervisor, model.RoleSystem:
			default:
				return nil, eris.Errorf("roster: actor %q has unknown role %q", a.ID, role)
			}
		}
		r.actors[a.ID] = a
	}
	return r, nil
}

// Parse reads a YAML roster document.
func Parse(data []byte) (*Roster, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "roster: parse yaml")
	}
	return New(f.Actors...)
}

// Load reads a YAML roster file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: read %s", path)
	}
	return Parse(data)
}

// Resolve returns the actor with id. Unknown actors are unauthorized.
func (r *Roster) Resolve(id string) (model.Actor, error) {
	a, ok := r.actors[strings.TrimSpace(id)]
	if !ok {
		return model.Actor{}, model.NewError(model.KindUnauthorizedActor, "", "unknown actor %q", id)
	}
	return a, nil
}

// WithRole lists the ids of actors holding role, sorted.
func (r *Roster) WithRole(role model.Role) []string {
	var out []string
	for id, a := range r.actors {
		if a.Has(role) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of actors.
func (r *Roster) Len() int {
	return len(r.actors)
}

// Marshal renders the roster as YAML, actors sorted by id.
func (r *Roster) Marshal() ([]byte, error) {
	ids := make([]string, 0, len(r.actors))
	for id := range r.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	f := file{Actors: make([]model.Actor, 0, len(ids))}
	for _, id := range ids {
		f.Actors = append(f.Actors, r.actors[id])
	}
	out, err := yaml.Marshal(f)
	return out, eris.Wrap(err, "roster: marshal yaml")
}
