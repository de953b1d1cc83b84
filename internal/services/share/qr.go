package share

import (
	"regexp"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
)

// 清单二维码内容为清单页面地址，例如 https://grocery.example.com/list/<id>
var listPathPattern = regexp.MustCompile(`/list/([A-Za-z0-9_-]+)`)

// ParseListIDFromQR 从二维码文本中提取清单 ID
func ParseListIDFromQR(data string) (string, error) {
	m := listPathPattern.FindStringSubmatch(data)
	if m == nil {
		return "", xerr.ErrInvalidQRCode
	}
	return m[1], nil
}
