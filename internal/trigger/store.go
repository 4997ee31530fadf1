package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hansduf/WA-Integrasi-sub000/internal/cache"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// Store manages triggers and groups on top of a Repository, enforcing the
// global normalized-name namespace shared by trigger names, aliases and
// group names.
type Store struct {
	repo Repository

	// counts caches per-data-source trigger counts; any mutation clears it.
	counts *cache.TTL[int]
}

// NewStore creates a trigger store.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		counts: cache.NewTTL[int](30 * time.Second),
	}
}

// nameOwners maps every normalized name in the namespace to a description
// of its owner, excluding the trigger or group being saved.
func (s *Store) nameOwners(ctx context.Context, excludeID string) (map[string]string, error) {
	owners := make(map[string]string)

	triggers, err := s.repo.ListTriggers(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range triggers {
		if t.ID == excludeID {
			continue
		}
		for _, name := range t.Names() {
			owners[Normalize(name)] = "trigger " + t.Name
		}
	}

	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.ID == excludeID {
			continue
		}
		owners[Normalize(g.Name)] = "group " + g.Name
	}
	return owners, nil
}

func (s *Store) checkNamesFree(ctx context.Context, names []string, excludeID string) error {
	owners, err := s.nameOwners(ctx, excludeID)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		norm := Normalize(name)
		if norm == "" {
			return errors.NewValidation("name", "must contain at least one non-space character")
		}
		if seen[norm] {
			return errors.NewAmbiguousName(name, "this trigger")
		}
		seen[norm] = true
		if owner, taken := owners[norm]; taken {
			return errors.NewAmbiguousName(name, owner)
		}
	}
	return nil
}

func validateTrigger(t *Trigger) error {
	if t.Name == "" {
		return errors.NewValidation("name", "required")
	}
	switch t.Type {
	case TypeSimpleQuery:
		if t.DataSourceID == "" {
			return errors.NewValidation("dataSourceId", "required for simple-query triggers")
		}
		if t.QueryTemplate == "" {
			return errors.NewValidation("queryTemplate", "required for simple-query triggers")
		}
	case TypeComposite:
		if len(t.Children) == 0 {
			return errors.NewValidation("children", "composite triggers need at least one child")
		}
	case TypeGroupRef:
		if t.GroupID == "" {
			return errors.NewValidation("groupId", "required for group-ref triggers")
		}
	default:
		return errors.NewValidation("type", "unknown trigger type "+string(t.Type))
	}
	return nil
}

// CreateTrigger validates, claims the trigger's names in the namespace and
// persists it.
func (s *Store) CreateTrigger(ctx context.Context, t *Trigger) (*Trigger, error) {
	if err := validateTrigger(t); err != nil {
		return nil, err
	}
	if err := s.checkNamesFree(ctx, t.Names(), ""); err != nil {
		return nil, err
	}

	stored := t.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = time.Now()
	if err := s.repo.SaveTrigger(ctx, stored); err != nil {
		return nil, err
	}
	s.counts.InvalidateAll()
	return stored.Clone(), nil
}

// UpdateTrigger replaces a trigger record, re-validating its names.
func (s *Store) UpdateTrigger(ctx context.Context, t *Trigger) (*Trigger, error) {
	current, err := s.repo.GetTrigger(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if err := validateTrigger(t); err != nil {
		return nil, err
	}
	if err := s.checkNamesFree(ctx, t.Names(), t.ID); err != nil {
		return nil, err
	}

	stored := t.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.UsageCount = current.UsageCount
	stored.LastUsedAt = current.LastUsedAt
	if err := s.repo.SaveTrigger(ctx, stored); err != nil {
		return nil, err
	}
	s.counts.InvalidateAll()
	return stored.Clone(), nil
}

// GetTrigger returns one trigger by id.
func (s *Store) GetTrigger(ctx context.Context, id string) (*Trigger, error) {
	return s.repo.GetTrigger(ctx, id)
}

// ListTriggers returns all triggers.
func (s *Store) ListTriggers(ctx context.Context) ([]*Trigger, error) {
	return s.repo.ListTriggers(ctx)
}

// DeleteTrigger removes a trigger and frees all of its names.
func (s *Store) DeleteTrigger(ctx context.Context, id string) error {
	if err := s.repo.DeleteTrigger(ctx, id); err != nil {
		return err
	}
	s.counts.InvalidateAll()
	return nil
}

// FindByName resolves a normalized name to the trigger owning it, either
// as primary name or alias.
func (s *Store) FindByName(ctx context.Context, name string) (*Trigger, error) {
	norm := Normalize(name)
	triggers, err := s.repo.ListTriggers(ctx)
	if err != nil {
		return nil, err
	}
	var found *Trigger
	for _, t := range triggers {
		for _, candidate := range t.Names() {
			if Normalize(candidate) != norm {
				continue
			}
			// Duplicate names in the catalog are reported, not resolved
			// to whichever record lists first.
			if found != nil && found.ID != t.ID {
				return nil, errors.NewAmbiguousName(name, found.Name)
			}
			found = t
		}
	}
	if found == nil {
		return nil, errors.NewNotFound("trigger", name)
	}
	return found, nil
}

// FindGroupByName resolves a normalized name to a group.
func (s *Store) FindGroupByName(ctx context.Context, name string) (*Group, error) {
	norm := Normalize(name)
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	var found *Group
	for _, g := range groups {
		if Normalize(g.Name) != norm {
			continue
		}
		if found != nil && found.ID != g.ID {
			return nil, errors.NewAmbiguousName(name, found.Name)
		}
		found = g
	}
	if found == nil {
		return nil, errors.NewNotFound("trigger group", name)
	}
	return found, nil
}

// RecordUsage bumps the usage counter and last-used timestamp. Failures
// are swallowed; usage stats are advisory.
func (s *Store) RecordUsage(ctx context.Context, id string) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return
	}
	t.UsageCount++
	t.LastUsedAt = time.Now()
	_ = s.repo.SaveTrigger(ctx, t)
}

// CountByDataSource reports how many triggers reference a data source.
// Results are cached briefly; any trigger mutation invalidates the cache.
func (s *Store) CountByDataSource(ctx context.Context, dataSourceID string) (int, error) {
	if n, ok := s.counts.Get(dataSourceID); ok {
		return n, nil
	}
	triggers, err := s.repo.ListTriggers(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range triggers {
		if t.DataSourceID == dataSourceID {
			n++
		}
	}
	s.counts.Set(dataSourceID, n)
	return n, nil
}

// Rename changes a trigger's primary name, keeping aliases.
func (s *Store) Rename(ctx context.Context, id, newName string) (*Trigger, error) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := t.Clone()
	updated.Name = newName
	return s.UpdateTrigger(ctx, updated)
}

// AddAlias attaches another name to an existing trigger.
func (s *Store) AddAlias(ctx context.Context, id, alias string) (*Trigger, error) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := t.Clone()
	updated.Aliases = append(updated.Aliases, alias)
	return s.UpdateTrigger(ctx, updated)
}

// UpdateQuery replaces the query template of a simple-query trigger.
func (s *Store) UpdateQuery(ctx context.Context, id, template string) (*Trigger, error) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := t.Clone()
	updated.QueryTemplate = template
	return s.UpdateTrigger(ctx, updated)
}

// UpdateDescription replaces a trigger's description.
func (s *Store) UpdateDescription(ctx context.Context, id, description string) (*Trigger, error) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := t.Clone()
	updated.Description = description
	return s.UpdateTrigger(ctx, updated)
}

// UpdateResponsePrefix replaces the text prepended to a trigger's reply.
func (s *Store) UpdateResponsePrefix(ctx context.Context, id, prefix string) (*Trigger, error) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := t.Clone()
	updated.ResponsePrefix = prefix
	return s.UpdateTrigger(ctx, updated)
}

// SetActive toggles whether a trigger resolves and executes.
func (s *Store) SetActive(ctx context.Context, id string, active bool) (*Trigger, error) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := t.Clone()
	updated.Active = active
	return s.UpdateTrigger(ctx, updated)
}

// DeleteName removes one name from whatever owns it. Removing an alias
// keeps the trigger; removing the primary name promotes the first alias;
// removing a trigger's only name deletes the trigger. Group names delete
// the group.
func (s *Store) DeleteName(ctx context.Context, name string) error {
	norm := Normalize(name)

	t, err := s.FindByName(ctx, name)
	if err == nil {
		updated := t.Clone()
		if Normalize(updated.Name) == norm {
			if len(updated.Aliases) == 0 {
				if derr := s.repo.DeleteTrigger(ctx, updated.ID); derr != nil {
					return derr
				}
				s.counts.InvalidateAll()
				return nil
			}
			updated.Name = updated.Aliases[0]
			updated.Aliases = updated.Aliases[1:]
		} else {
			kept := updated.Aliases[:0]
			for _, alias := range updated.Aliases {
				if Normalize(alias) != norm {
					kept = append(kept, alias)
				}
			}
			updated.Aliases = kept
		}
		if err := s.repo.SaveTrigger(ctx, updated); err != nil {
			return err
		}
		s.counts.InvalidateAll()
		return nil
	}
	if !errors.IsNotFound(err) {
		return err
	}

	g, err := s.FindGroupByName(ctx, name)
	if err != nil {
		return err
	}
	return s.DeleteGroup(ctx, g.ID)
}

// CreateGroup validates member references, claims the group name and
// persists the group.
func (s *Store) CreateGroup(ctx context.Context, g *Group) (*Group, error) {
	if g.Name == "" {
		return nil, errors.NewValidation("name", "required")
	}
	if err := s.validateMembers(ctx, g.MemberTriggerIDs); err != nil {
		return nil, err
	}
	if err := s.checkNamesFree(ctx, []string{g.Name}, ""); err != nil {
		return nil, err
	}

	stored := g.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.ExecutionMode == "" {
		stored.ExecutionMode = ModeSequential
	}
	stored.CreatedAt = time.Now()
	if err := s.repo.SaveGroup(ctx, stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// UpdateGroup replaces a group record.
func (s *Store) UpdateGroup(ctx context.Context, g *Group) (*Group, error) {
	current, err := s.repo.GetGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if g.Name == "" {
		return nil, errors.NewValidation("name", "required")
	}
	if err := s.validateMembers(ctx, g.MemberTriggerIDs); err != nil {
		return nil, err
	}
	if err := s.checkNamesFree(ctx, []string{g.Name}, g.ID); err != nil {
		return nil, err
	}

	stored := g.Clone()
	stored.CreatedAt = current.CreatedAt
	if err := s.repo.SaveGroup(ctx, stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// GetGroup returns one group by id.
func (s *Store) GetGroup(ctx context.Context, id string) (*Group, error) {
	return s.repo.GetGroup(ctx, id)
}

// ListGroups returns all groups.
func (s *Store) ListGroups(ctx context.Context) ([]*Group, error) {
	return s.repo.ListGroups(ctx)
}

// DeleteGroup removes a group. Member triggers are untouched.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return s.repo.DeleteGroup(ctx, id)
}

// validateMembers checks that member ids exist. Missing members are
// rejected at write time; at run time a dangling member only fails its
// own slot.
func (s *Store) validateMembers(ctx context.Context, memberIDs []string) error {
	for _, id := range memberIDs {
		if _, err := s.repo.GetTrigger(ctx, id); err != nil {
			if errors.IsNotFound(err) {
				return errors.NewValidation("memberTriggerIds", "unknown trigger "+id)
			}
			return err
		}
	}
	return nil
}
