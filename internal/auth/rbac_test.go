package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	require.Equal(t, RoleAdmin, NormalizeRole("admin"))
	require.Equal(t, RoleAdmin, NormalizeRole("  ADMIN  "))
	require.Equal(t, RoleSuperadmin, NormalizeRole("superadmin"))
	require.Equal(t, RoleOrganizer, NormalizeRole("organizer"))

	// Unknown roles fall back to the least privileged role.
	require.Equal(t, RoleOrganizer, NormalizeRole("root"))
	require.Equal(t, RoleOrganizer, NormalizeRole(""))
}

func TestHasAtLeastHierarchy(t *testing.T) {
	require.True(t, HasAtLeast("superadmin", RoleOrganizer))
	require.True(t, HasAtLeast("superadmin", RoleAdmin))
	require.True(t, HasAtLeast("superadmin", RoleSuperadmin))

	require.True(t, HasAtLeast("admin", RoleOrganizer))
	require.True(t, HasAtLeast("admin", RoleAdmin))
	require.False(t, HasAtLeast("admin", RoleSuperadmin))

	require.True(t, HasAtLeast("organizer", RoleOrganizer))
	require.False(t, HasAtLeast("organizer", RoleAdmin))
	require.False(t, HasAtLeast("organizer", RoleSuperadmin))
}

func TestIsAdmin(t *testing.T) {
	require.True(t, IsAdmin("admin"))
	require.True(t, IsAdmin("superadmin"))
	require.False(t, IsAdmin("organizer"))
}

func TestIsSuperadmin(t *testing.T) {
	require.True(t, IsSuperadmin("superadmin"))
	require.False(t, IsSuperadmin("admin"))
}

func TestValidRole(t *testing.T) {
	require.True(t, ValidRole("organizer"))
	require.True(t, ValidRole("admin"))
	require.True(t, ValidRole("superadmin"))
	require.False(t, ValidRole("root"))
	require.False(t, ValidRole(""))
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.True(t, CheckPassword(hash, "correct horse battery"))
	require.False(t, CheckPassword(hash, "wrong password!!"))
}

func TestHashPasswordRejectsShort(t *testing.T) {
	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}
