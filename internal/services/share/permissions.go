package share

import (
	"strings"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
)

// 权限预设，界面上按 viewer ⊂ editor ⊂ admin 递进展示
const (
	PresetViewer = "viewer"
	PresetEditor = "editor"
	PresetAdmin  = "admin"
	PresetCustom = "custom"
)

var presets = map[string]models.SharePermissions{
	PresetViewer: {CanView: true},
	PresetEditor: {CanView: true, CanAddItems: true, CanEditItems: true},
	PresetAdmin:  {CanView: true, CanAddItems: true, CanEditItems: true, CanDeleteItems: true},
}

// PresetPermissions 返回预设对应的权限，未知名称返回 false
func PresetPermissions(name string) (models.SharePermissions, bool) {
	p, ok := presets[strings.ToLower(name)]
	return p, ok
}

// DescribePreset 返回与权限完全一致的预设名，否则返回 custom
func DescribePreset(p models.SharePermissions) string {
	for _, name := range []string{PresetViewer, PresetEditor, PresetAdmin} {
		if presets[name] == p {
			return name
		}
	}
	return PresetCustom
}

// PermissionLabel 加入页面展示的角色：能删除视为 admin，能编辑视为 editor
func PermissionLabel(p models.SharePermissions) string {
	switch {
	case p.CanDeleteItems:
		return PresetAdmin
	case p.CanEditItems:
		return PresetEditor
	default:
		return PresetViewer
	}
}

// DescribePermissions 例如 "View items, Add items"
func DescribePermissions(p models.SharePermissions) string {
	actions := make([]string, 0, 4)
	if p.CanView {
		actions = append(actions, "View items")
	}
	if p.CanAddItems {
		actions = append(actions, "Add items")
	}
	if p.CanEditItems {
		actions = append(actions, "Edit items")
	}
	if p.CanDeleteItems {
		actions = append(actions, "Delete items")
	}
	return strings.Join(actions, ", ")
}

// DefaultSettings 分享对话框的默认配置
func DefaultSettings() models.ShareSettings {
	return models.ShareSettings{
		Permissions:    models.SharePermissions{CanView: true, CanAddItems: true},
		ExpiresIn:      models.ExpiresInWeek,
		ShareMode:      models.ShareModeAll,
		AllowAnonymous: true,
	}
}
