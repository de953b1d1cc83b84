package share

import (
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
)

// ResolveExpiration 将相对有效期换算为绝对时间，never 或未知取值返回 nil
func ResolveExpiration(expiresIn models.ExpiresIn, now time.Time) *time.Time {
	var d time.Duration
	switch expiresIn {
	case models.ExpiresInHour:
		d = time.Hour
	case models.ExpiresInDay:
		d = 24 * time.Hour
	case models.ExpiresInWeek:
		d = 7 * 24 * time.Hour
	default:
		return nil
	}
	t := now.Add(d)
	return &t
}
