package ui

import (
	"agrichat-web/internal/model"
	"time"
)

// TimeLabel 将 ISO-8601 时间戳格式化为 "오전 09:30" 形式的时刻标签。无法解析时返回空字符串。
func TimeLabel(ts string, loc *time.Location) string {
	t, ok := model.ParseTimestamp(ts, loc)
	if !ok {
		return ""
	}
	t = t.In(loc)
	meridiem := "오전"
	if t.Hour() >= 12 {
		meridiem = "오후"
	}
	return meridiem + " " + t.Format("03:04")
}
