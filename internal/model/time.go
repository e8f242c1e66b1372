package model

import "time"

// isoLayout 与浏览器 Date.prototype.toISOString 的输出保持一致（UTC、毫秒、Z 结尾）。
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// ISOTimestamp 将时间格式化为 ISO-8601 字符串。
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ParseTimestamp 解析上游或本地生成的时间戳。
// 上游服务可能返回不带时区的时间，此时按 fallback 时区解析。
func ParseTimestamp(s string, fallback *time.Location) (time.Time, bool) {
	if fallback == nil {
		fallback = time.UTC
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, fallback)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
