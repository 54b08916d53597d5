package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

type mockRepository struct {
	users       map[int64]*Identity
	memberships map[int64][]int64
	groupNames  map[int64]string
	nextID      int64

	txError     error
	updateError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:       make(map[int64]*Identity),
		memberships: make(map[int64][]int64),
		groupNames:  make(map[int64]string),
		nextID:      1,
	}
}

func (m *mockRepository) seed(u Identity) *Identity {
	if u.ID == 0 {
		u.ID = m.nextID
		m.nextID++
	} else if u.ID >= m.nextID {
		m.nextID = u.ID + 1
	}
	copied := u
	m.users[copied.ID] = &copied
	return &copied
}

func (m *mockRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(m)
}

func (m *mockRepository) FindByID(ctx context.Context, id int64) (*Identity, error) {
	u, ok := m.users[id]
	if !ok || u.IsDeleted {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockRepository) FindByIdentifier(ctx context.Context, identifier string) (*Identity, error) {
	for _, u := range m.users {
		if u.IsDeleted {
			continue
		}
		if u.Email == identifier || u.Username == identifier {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	for _, u := range m.users {
		if u.ID != excludeID && u.Email == email && !u.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	for _, u := range m.users {
		if u.ID != excludeID && u.Username == username && !u.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) Create(ctx context.Context, u *Identity) error {
	u.ID = m.nextID
	m.nextID++
	u.DateJoined = time.Now()
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *mockRepository) Update(ctx context.Context, u *Identity) error {
	if m.updateError != nil {
		return m.updateError
	}
	if _, ok := m.users[u.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsDeleted = true
	return nil
}

func (m *mockRepository) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *mockRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockRepository) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (m *mockRepository) ReplaceGroups(ctx context.Context, id int64, groupIDs []int64) error {
	m.memberships[id] = append([]int64(nil), groupIDs...)
	return nil
}

func (m *mockRepository) GroupsFor(ctx context.Context, id int64) ([]GroupRef, error) {
	var refs []GroupRef
	for _, gid := range m.memberships[id] {
		refs = append(refs, GroupRef{ID: gid, Name: m.groupNames[gid]})
	}
	return refs, nil
}

func (m *mockRepository) ValidGroupIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var valid []int64
	for _, id := range ids {
		if _, ok := m.groupNames[id]; ok {
			valid = append(valid, id)
		}
	}
	return valid, nil
}

func (m *mockRepository) List(ctx context.Context, limit, offset int) ([]Identity, int, error) {
	var all []Identity
	for _, u := range m.users {
		if !u.IsDeleted {
			all = append(all, *u)
		}
	}
	total := len(all)
	if offset >= len(all) {
		return []Identity{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockRepository) CountUsers(ctx context.Context) (int, int, error) {
	total, active := 0, 0
	for _, u := range m.users {
		if u.IsDeleted {
			continue
		}
		total++
		if u.IsActive {
			active++
		}
	}
	return total, active, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, nil, nil, bcrypt.MinCost)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegisterCreatesActiveUserWithGroups(t *testing.T) {
	repo := newMockRepository()
	repo.groupNames[7] = "forecasters"
	svc := newTestService(repo)

	user, err := svc.Register(context.Background(), 1, RegisterInput{
		Email:     "amina@example.org",
		Username:  "amina",
		Password:  "s3cretpass",
		FirstName: "Amina",
		GroupIDs:  []int64{7},
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "s3cretpass", user.PasswordHash)
	require.Len(t, user.Groups, 1)
	assert.Equal(t, "forecasters", user.Groups[0].Name)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newMockRepository()
	repo.seed(Identity{Email: "amina@example.org", Username: "existing"})
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), 1, RegisterInput{
		Email:    "amina@example.org",
		Username: "amina",
		Password: "s3cretpass",
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateEmail)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	repo := newMockRepository()
	repo.seed(Identity{Email: "other@example.org", Username: "amina"})
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), 1, RegisterInput{
		Email:    "amina@example.org",
		Username: "amina",
		Password: "s3cretpass",
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateUsername)
}

func TestRegisterRejectsUnknownGroups(t *testing.T) {
	repo := newMockRepository()
	repo.groupNames[1] = "known"
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), 1, RegisterInput{
		Email:    "amina@example.org",
		Username: "amina",
		Password: "s3cretpass",
		GroupIDs: []int64{1, 42, 99},
	})
	verr, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields["group_ids"], "42")
	assert.Contains(t, verr.Fields["group_ids"], "99")
}

func TestUpdateProfileCannotTouchPrivilegeFlags(t *testing.T) {
	repo := newMockRepository()
	caller := repo.seed(Identity{Email: "amina@example.org", Username: "amina", IsActive: true})
	svc := newTestService(repo)

	newName := "Amina"
	updated, err := svc.UpdateProfile(context.Background(), caller.ID, ProfileUpdate{FirstName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Amina", updated.FirstName)
	assert.False(t, updated.IsStaff)
	assert.False(t, updated.IsSuperuser)
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	repo := newMockRepository()
	repo.seed(Identity{Email: "taken@example.org", Username: "other"})
	caller := repo.seed(Identity{Email: "amina@example.org", Username: "amina"})
	svc := newTestService(repo)

	taken := "taken@example.org"
	_, err := svc.UpdateProfile(context.Background(), caller.ID, ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, shared.ErrDuplicateEmail)
}

func TestUpdateByAdminRefusesSuperuserTarget(t *testing.T) {
	repo := newMockRepository()
	target := repo.seed(Identity{Email: "root@example.org", Username: "root", IsSuperuser: true})
	svc := newTestService(repo)

	name := "New"
	_, err := svc.UpdateByAdmin(context.Background(), 1, target.ID, AdminUpdateInput{
		ProfileUpdate: ProfileUpdate{FirstName: &name},
	})
	assert.ErrorIs(t, err, shared.ErrProtectedAccount)
}

func TestUpdateByAdminReplacesGroups(t *testing.T) {
	repo := newMockRepository()
	repo.groupNames[3] = "analysts"
	target := repo.seed(Identity{Email: "user@example.org", Username: "user"})
	repo.memberships[target.ID] = []int64{9}
	repo.groupNames[9] = "old"
	svc := newTestService(repo)

	groupIDs := []int64{3}
	updated, err := svc.UpdateByAdmin(context.Background(), 1, target.ID, AdminUpdateInput{GroupIDs: &groupIDs})
	require.NoError(t, err)
	require.Len(t, updated.Groups, 1)
	assert.Equal(t, int64(3), updated.Groups[0].ID)
}

func TestDeleteRefusesSuperuserTarget(t *testing.T) {
	repo := newMockRepository()
	target := repo.seed(Identity{Email: "root@example.org", Username: "root", IsSuperuser: true})
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), 1, target.ID)
	assert.ErrorIs(t, err, shared.ErrProtectedAccount)
	_, findErr := repo.FindByID(context.Background(), target.ID)
	assert.NoError(t, findErr)
}

func TestDeleteRemovesRegularTarget(t *testing.T) {
	repo := newMockRepository()
	target := repo.seed(Identity{Email: "user@example.org", Username: "user"})
	svc := newTestService(repo)

	require.NoError(t, svc.Delete(context.Background(), 1, target.ID))
	_, err := repo.FindByID(context.Background(), target.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetActiveNoOpFails(t *testing.T) {
	repo := newMockRepository()
	active := repo.seed(Identity{Email: "a@example.org", Username: "a", IsActive: true})
	inactive := repo.seed(Identity{Email: "b@example.org", Username: "b", IsActive: false})
	svc := newTestService(repo)

	err := svc.SetActive(context.Background(), 1, active.ID, true)
	require.ErrorIs(t, err, shared.ErrNoOpStateChange)
	assert.Contains(t, err.Error(), "already active")

	err = svc.SetActive(context.Background(), 1, inactive.ID, false)
	require.ErrorIs(t, err, shared.ErrNoOpStateChange)
	assert.Contains(t, err.Error(), "already inactive")
}

func TestSetActiveTogglesState(t *testing.T) {
	repo := newMockRepository()
	target := repo.seed(Identity{Email: "user@example.org", Username: "user", IsActive: false})
	svc := newTestService(repo)

	require.NoError(t, svc.SetActive(context.Background(), 1, target.ID, true))
	stored, err := repo.FindByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}

func TestSetActiveRefusesSuperuserTarget(t *testing.T) {
	repo := newMockRepository()
	target := repo.seed(Identity{Email: "root@example.org", Username: "root", IsSuperuser: true, IsActive: true})
	svc := newTestService(repo)

	err := svc.SetActive(context.Background(), 1, target.ID, false)
	assert.ErrorIs(t, err, shared.ErrProtectedAccount)
}

func TestChangePasswordByAdminRefusesSuperuser(t *testing.T) {
	repo := newMockRepository()
	target := repo.seed(Identity{Email: "root@example.org", Username: "root", IsSuperuser: true})
	svc := newTestService(repo)

	err := svc.ChangePasswordByAdmin(context.Background(), 1, target.ID, "newpassword")
	assert.ErrorIs(t, err, shared.ErrProtectedAccount)
}

func TestChangePasswordByAdminResetsHash(t *testing.T) {
	repo := newMockRepository()
	target := repo.seed(Identity{Email: "user@example.org", Username: "user", PasswordHash: hashOf(t, "oldpass")})
	svc := newTestService(repo)

	require.NoError(t, svc.ChangePasswordByAdmin(context.Background(), 1, target.ID, "newpassword"))
	stored, err := repo.FindByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpassword")))
}

func TestChangeOwnPasswordVerifiesOldPassword(t *testing.T) {
	repo := newMockRepository()
	caller := repo.seed(Identity{Email: "user@example.org", Username: "user", PasswordHash: hashOf(t, "oldpass")})
	svc := newTestService(repo)

	err := svc.ChangeOwnPassword(context.Background(), caller.ID, "wrongpass", "newpassword")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, svc.ChangeOwnPassword(context.Background(), caller.ID, "oldpass", "newpassword"))
	stored, findErr := repo.FindByID(context.Background(), caller.ID)
	require.NoError(t, findErr)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpassword")))
}

func TestChangeOwnPasswordAllowedForSuperuser(t *testing.T) {
	repo := newMockRepository()
	caller := repo.seed(Identity{Email: "root@example.org", Username: "root", IsSuperuser: true, PasswordHash: hashOf(t, "oldpass")})
	svc := newTestService(repo)

	assert.NoError(t, svc.ChangeOwnPassword(context.Background(), caller.ID, "oldpass", "newpassword"))
}

func TestListPaginates(t *testing.T) {
	repo := newMockRepository()
	for i := 0; i < 5; i++ {
		repo.seed(Identity{Email: string(rune('a'+i)) + "@example.org", Username: string(rune('a' + i))})
	}
	svc := newTestService(repo)

	list, page, err := svc.List(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
}
