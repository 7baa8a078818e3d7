package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgetill/edgetill/session"
)

func builtTable(t *testing.T) *Table {
	t.Helper()

	table := NewTable()
	require.NoError(t, table.Grant(session.RoleRoot, Rule{Resource: Wildcard}))
	require.NoError(t, table.Grant(session.RoleAdmin, Rule{
		Resource: "products",
		Actions:  []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	}))
	require.NoError(t, table.Grant(session.RolePartner, Rule{
		Resource:     "products",
		Actions:      []Action{ActionRead, ActionUpdate},
		RequireOwner: true,
	}))
	require.NoError(t, table.Grant(session.RoleOperator, Rule{
		Resource: "orders",
		Actions:  []Action{ActionCreate, ActionRead},
	}))
	table.Freeze()
	return table
}

func TestDenyByDefault(t *testing.T) {
	table := builtTable(t)

	assert.False(t, table.Allows(session.RoleOperator, "products", ActionDelete))
	assert.False(t, table.Allows(session.RoleOperator, "settings", ActionRead))
	assert.False(t, table.Allows(session.RoleAdmin, "devices", ActionRead))
}

func TestWildcardCoversEverything(t *testing.T) {
	table := builtTable(t)

	assert.True(t, table.HasWildcard(session.RoleRoot))
	assert.True(t, table.Allows(session.RoleRoot, "anything", ActionDelete))
	assert.False(t, table.HasWildcard(session.RoleAdmin))
}

func TestExactRuleDecision(t *testing.T) {
	table := builtTable(t)

	assert.True(t, table.Allows(session.RoleAdmin, "products", ActionDelete))
	assert.True(t, table.Allows(session.RoleOperator, "orders", ActionCreate))
	assert.False(t, table.Allows(session.RoleOperator, "orders", ActionDelete))
}

func TestRuleForExposesOwnershipConstraint(t *testing.T) {
	table := builtTable(t)

	rule, ok := table.RuleFor(session.RolePartner, "products")
	require.True(t, ok)
	assert.True(t, rule.RequireOwner)

	_, ok = table.RuleFor(session.RolePartner, "orders")
	assert.False(t, ok)
}

func TestGrantValidation(t *testing.T) {
	table := NewTable()

	assert.Error(t, table.Grant(session.Role("GHOST"), Rule{Resource: "x", Actions: []Action{ActionRead}}))
	assert.Error(t, table.Grant(session.RoleAdmin, Rule{Resource: "", Actions: []Action{ActionRead}}))
	assert.Error(t, table.Grant(session.RoleAdmin, Rule{Resource: "x"}))
	assert.Error(t, table.Grant(session.RoleAdmin, Rule{Resource: "x", Actions: []Action{Action("explode")}}))

	require.NoError(t, table.Grant(session.RoleAdmin, Rule{Resource: "x", Actions: []Action{ActionRead}}))
	assert.Error(t, table.Grant(session.RoleAdmin, Rule{Resource: "x", Actions: []Action{ActionUpdate}}),
		"duplicate (role, resource) grants are rejected")
}

func TestFrozenTableRejectsGrants(t *testing.T) {
	table := builtTable(t)

	err := table.Grant(session.RoleAdmin, Rule{Resource: "late", Actions: []Action{ActionRead}})
	assert.Error(t, err)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("update")
	require.True(t, ok)
	assert.Equal(t, ActionUpdate, a)

	_, ok = ParseAction("UPDATE")
	assert.False(t, ok)
}
