package model

import (
	"strconv"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式输出时间，供后台列表与 CSV 导出使用。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// String 以后台展示格式输出时间，零值输出空串。
func (t LocalTime) String() string {
	if time.Time(t).IsZero() {
		return ""
	}
	return time.Time(t).Format(timeFormat)
}

// MarshalJSON 零值输出 null。
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.String())), nil
}
