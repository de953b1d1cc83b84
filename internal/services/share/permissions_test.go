package share

import (
	"testing"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	viewer, ok := PresetPermissions("viewer")
	require.True(t, ok)
	assert.Equal(t, models.SharePermissions{CanView: true}, viewer)

	admin, ok := PresetPermissions("Admin")
	require.True(t, ok)
	assert.True(t, admin.CanDeleteItems)

	_, ok = PresetPermissions("owner")
	assert.False(t, ok)
}

func TestDescribePreset(t *testing.T) {
	for _, name := range []string{PresetViewer, PresetEditor, PresetAdmin} {
		p, _ := PresetPermissions(name)
		assert.Equal(t, name, DescribePreset(p))
	}
	assert.Equal(t, PresetCustom, DescribePreset(models.SharePermissions{CanView: true, CanAddItems: true}))
	assert.Equal(t, PresetCustom, DescribePreset(models.SharePermissions{CanDeleteItems: true}))
}

func TestPermissionLabel(t *testing.T) {
	// 删除权限不隐含编辑权限，但标签按删除优先
	assert.Equal(t, PresetAdmin, PermissionLabel(models.SharePermissions{CanDeleteItems: true}))
	assert.Equal(t, PresetEditor, PermissionLabel(models.SharePermissions{CanView: true, CanEditItems: true}))
	assert.Equal(t, PresetViewer, PermissionLabel(models.SharePermissions{CanView: true, CanAddItems: true}))
}

func TestDescribePermissions(t *testing.T) {
	assert.Equal(t, "View items, Add items", DescribePermissions(models.SharePermissions{CanView: true, CanAddItems: true}))
	assert.Equal(t, "", DescribePermissions(models.SharePermissions{}))
	admin, _ := PresetPermissions(PresetAdmin)
	assert.Equal(t, "View items, Add items, Edit items, Delete items", DescribePermissions(admin))
}

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())
	assert.Equal(t, models.ExpiresInWeek, s.ExpiresIn)
	assert.True(t, s.AllowAnonymous)
	assert.Nil(t, s.MaxUses)
}

func TestParseListIDFromQR(t *testing.T) {
	id, err := ParseListIDFromQR("https://grocery.example.com/list/3f2b9c1e-aaaa-bbbb-cccc-1234567890ab")
	require.NoError(t, err)
	assert.Equal(t, "3f2b9c1e-aaaa-bbbb-cccc-1234567890ab", id)

	_, err = ParseListIDFromQR("https://example.com/something")
	assert.Error(t, err)
}
