// Role → action authorization with a deny-by-default model. Absence of a
// grant is denial.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// Action is a gateway operation class that can be granted to roles.
type Action string

const (
	// ActionManageDataSources covers data source create/update/delete.
	ActionManageDataSources Action = "manage_datasources"

	// ActionManageTriggers covers trigger and group create/update/delete.
	ActionManageTriggers Action = "manage_triggers"

	// ActionQuery covers ad hoc query execution and schema discovery.
	ActionQuery Action = "query"

	// ActionResolve covers message resolution and trigger execution.
	ActionResolve Action = "resolve"
)

// AuthorizationService manages role → action grants.
type AuthorizationService struct {
	mu     sync.RWMutex
	grants map[string]map[Action]bool // role → actions
}

// NewAuthorizationService creates a new authorization service with
// deny-by-default.
func NewAuthorizationService() *AuthorizationService {
	return &AuthorizationService{
		grants: make(map[string]map[Action]bool),
	}
}

// GrantAction grants an action to a role.
func (s *AuthorizationService) GrantAction(role string, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grants[role] == nil {
		s.grants[role] = make(map[Action]bool)
	}
	s.grants[role][action] = true
}

// RevokeAction removes a grant from a role.
func (s *AuthorizationService) RevokeAction(role string, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grants[role] != nil {
		delete(s.grants[role], action)
	}
}

// GrantAll gives a role every action. Used for the admin role.
func (s *AuthorizationService) GrantAll(role string) {
	for _, action := range []Action{ActionManageDataSources, ActionManageTriggers, ActionQuery, ActionResolve} {
		s.GrantAction(role, action)
	}
}

// Authorize checks that the user's roles include a grant for the action.
// Returns nil if authorized, error if denied.
func (s *AuthorizationService) Authorize(ctx context.Context, user *User, action Action) error {
	if user == nil {
		return errors.NewAccessDenied(string(action), "no user context")
	}
	if !s.hasGrant(user.Roles, action) {
		return errors.NewAccessDenied(string(action),
			fmt.Sprintf("role(s) %v lack the %s grant", user.Roles, action))
	}
	return nil
}

// HasAccess is a convenience method for a single check without an error.
func (s *AuthorizationService) HasAccess(user *User, action Action) bool {
	if user == nil {
		return false
	}
	return s.hasGrant(user.Roles, action)
}

func (s *AuthorizationService) hasGrant(roles []string, action Action) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range roles {
		if s.grants[role][action] {
			return true
		}
	}
	return false // deny by default
}

// GetGrants returns the actions granted to a role (for debugging/admin).
func (s *AuthorizationService) GetGrants(role string) []Action {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var actions []Action
	for action, ok := range s.grants[role] {
		if ok {
			actions = append(actions, action)
		}
	}
	return actions
}
