package store

import (
	"time"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.999"

func parseTime(v string) time.Time {
	if t, err := time.Parse(sqliteTimeLayout, v); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	return time.Time{}
}

func nowSQLite() string {
	return time.Now().UTC().Format(sqliteTimeLayout)
}
