package permission

import (
	"errors"
	"sync"

	"github.com/edgetill/edgetill/session"
)

// Action is one of the four operations a rule can grant on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction maps a wire string to an Action, or false for anything
// outside the closed set.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return Action(s), true
	default:
		return "", false
	}
}

// Wildcard matches every resource. ROOT's rule set is the universal
// wildcard with no ownership constraint.
const Wildcard = "*"

// Rule grants a set of actions on one resource. When RequireOwner is set,
// the grant only applies to resources the session's account owns.
type Rule struct {
	Resource     string
	Actions      []Action
	RequireOwner bool
}

func (r Rule) allows(action Action) bool {
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Table maps roles to their static rule sets. Grants are registered
// during initialization and the table is frozen before use; lookups after
// Freeze are lock-free reads of immutable state.
type Table struct {
	mu     sync.RWMutex
	rules  map[session.Role]map[string]Rule
	frozen bool
}

// NewTable creates an empty role table.
func NewTable() *Table {
	return &Table{
		rules: make(map[session.Role]map[string]Rule),
	}
}

// Grant registers a rule for the role. Must be called before Freeze.
// Registering the same (role, resource) pair twice is an error; the
// table is static, not additive.
func (t *Table) Grant(role session.Role, rule Rule) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New("permission table frozen")
	}
	if _, ok := session.ParseRole(string(role)); !ok {
		return errors.New("unknown role: " + string(role))
	}
	if rule.Resource == "" {
		return errors.New("rule resource cannot be empty")
	}
	if len(rule.Actions) == 0 && rule.Resource != Wildcard {
		return errors.New("rule must grant at least one action")
	}
	for _, a := range rule.Actions {
		if _, ok := ParseAction(string(a)); !ok {
			return errors.New("unknown action: " + string(a))
		}
	}

	byResource, ok := t.rules[role]
	if !ok {
		byResource = make(map[string]Rule)
		t.rules[role] = byResource
	}
	if _, exists := byResource[rule.Resource]; exists {
		return errors.New("rule already registered for resource: " + rule.Resource)
	}

	byResource[rule.Resource] = rule
	return nil
}

// Freeze prevents further grants. Must be called before the table is
// used for decisions.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// HasWildcard reports whether the role carries the universal wildcard.
func (t *Table) HasWildcard(role session.Role) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rules[role][Wildcard]
	return ok
}

// RuleFor returns the role's exact rule for the resource, or false when
// no rule exists. Wildcard rules are not consulted here; the caller
// checks HasWildcard first.
func (t *Table) RuleFor(role session.Role, resource string) (Rule, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rule, ok := t.rules[role][resource]
	return rule, ok
}

// Allows is the static-table decision: wildcard, else exact resource rule
// containing the action. Ownership and remote-authority checks layer on
// top of this in the Engine.
func (t *Table) Allows(role session.Role, resource string, action Action) bool {
	if t.HasWildcard(role) {
		return true
	}
	rule, ok := t.RuleFor(role, resource)
	if !ok {
		return false
	}
	return rule.allows(action)
}

// Count returns the number of roles with at least one rule.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rules)
}
