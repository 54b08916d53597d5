package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

type mockRepo struct {
	roles       map[int64]*Role
	assignments map[int64]*int64
	nextID      int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		roles:       make(map[int64]*Role),
		assignments: make(map[int64]*int64),
		nextID:      1,
	}
}

func (m *mockRepo) List(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRepo) Get(ctx context.Context, id int64) (*Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *mockRepo) Create(ctx context.Context, role Role) (*Role, error) {
	for _, r := range m.roles {
		if r.Name == role.Name {
			return nil, ErrDuplicateName
		}
	}
	role.ID = m.nextID
	m.nextID++
	copied := role
	m.roles[role.ID] = &copied
	return &role, nil
}

func (m *mockRepo) Update(ctx context.Context, role Role) (*Role, error) {
	if _, ok := m.roles[role.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	copied := role
	m.roles[role.ID] = &copied
	return &role, nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *mockRepo) AssignToUser(ctx context.Context, userID int64, roleID *int64) error {
	m.assignments[userID] = roleID
	return nil
}

func TestCreateRoleValidatesCapabilities(t *testing.T) {
	svc := NewService(newMockRepo())

	role, err := svc.Create(context.Background(), Role{
		Name:         "ibf-admin",
		Level:        2,
		Capabilities: map[string]bool{"user:view": true, "group:change": true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), role.ID)

	_, err = svc.Create(context.Background(), Role{
		Name:         "broken",
		Capabilities: map[string]bool{"report:nuke": true},
	})
	verr, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields["capabilities"], "report:nuke")
}

func TestCreateRoleRequiresName(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Create(context.Background(), Role{Name: "  "})
	_, ok := shared.AsValidationError(err)
	assert.True(t, ok)
}

func TestCreateRoleRejectsNegativeLevel(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Create(context.Background(), Role{Name: "observer", Level: -1})
	verr, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "level")
}

func TestCreateRoleDefaultsCapabilitiesToEmptyMap(t *testing.T) {
	svc := NewService(newMockRepo())

	role, err := svc.Create(context.Background(), Role{Name: "observer"})
	require.NoError(t, err)
	assert.NotNil(t, role.Capabilities)
	assert.Empty(t, role.Capabilities)
}

func TestAssignRequiresExistingRole(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	missing := int64(99)
	err := svc.Assign(context.Background(), 5, &missing)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	role, err := svc.Create(context.Background(), Role{Name: "observer"})
	require.NoError(t, err)

	require.NoError(t, svc.Assign(context.Background(), 5, &role.ID))
	require.NotNil(t, repo.assignments[5])
	assert.Equal(t, role.ID, *repo.assignments[5])
}

func TestAssignNilDetaches(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	require.NoError(t, svc.Assign(context.Background(), 5, nil))
	_, recorded := repo.assignments[5]
	assert.True(t, recorded)
	assert.Nil(t, repo.assignments[5])
}
