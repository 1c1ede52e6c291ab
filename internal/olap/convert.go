package olap

import (
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// timestampLayouts are the textual timestamp forms accepted from exports and
// staged files.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	snapshot.TimestampLayout,
	"2006-01-02 15:04:05-07:00",
}

// ParseTimestamp parses one of the accepted textual timestamp forms as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func toNullString(v snapshot.Value) bigquery.NullString {
	switch v.Kind() {
	case snapshot.KindString, snapshot.KindInt, snapshot.KindFloat, snapshot.KindBool, snapshot.KindTimestamp:
		return bigquery.NullString{StringVal: v.Text(), Valid: true}
	}
	return bigquery.NullString{}
}

func toNullInt64(v snapshot.Value) bigquery.NullInt64 {
	switch v.Kind() {
	case snapshot.KindInt:
		i, _ := v.Int64()
		return bigquery.NullInt64{Int64: i, Valid: true}
	case snapshot.KindFloat:
		f, _ := v.Float64()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return bigquery.NullInt64{Int64: int64(f), Valid: true}
		}
	case snapshot.KindString:
		s, _ := v.Str()
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return bigquery.NullInt64{Int64: i, Valid: true}
		}
	}
	return bigquery.NullInt64{}
}

func toNullBool(v snapshot.Value) bigquery.NullBool {
	switch v.Kind() {
	case snapshot.KindBool:
		b, _ := v.Bool()
		return bigquery.NullBool{Bool: b, Valid: true}
	case snapshot.KindString:
		s, _ := v.Str()
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return bigquery.NullBool{Bool: b, Valid: true}
		}
	}
	return bigquery.NullBool{}
}

// toNullTimestamp accepts unix seconds, timestamps and ISO-8601 text.
func toNullTimestamp(v snapshot.Value) bigquery.NullTimestamp {
	switch v.Kind() {
	case snapshot.KindTimestamp:
		t, _ := v.Time()
		return bigquery.NullTimestamp{Timestamp: t, Valid: true}
	case snapshot.KindInt:
		i, _ := v.Int64()
		return bigquery.NullTimestamp{Timestamp: time.Unix(i, 0).UTC(), Valid: true}
	case snapshot.KindFloat:
		f, _ := v.Float64()
		sec, frac := math.Modf(f)
		return bigquery.NullTimestamp{Timestamp: time.Unix(int64(sec), int64(frac*1e9)).UTC(), Valid: true}
	case snapshot.KindString:
		s, _ := v.Str()
		if t, ok := ParseTimestamp(s); ok {
			return bigquery.NullTimestamp{Timestamp: t, Valid: true}
		}
	}
	return bigquery.NullTimestamp{}
}

// toNullJSON keeps nested structures as JSON text. A string is assumed to be
// JSON already.
func toNullJSON(v snapshot.Value) bigquery.NullJSON {
	switch v.Kind() {
	case snapshot.KindMap, snapshot.KindList:
		return bigquery.NullJSON{JSONVal: v.Text(), Valid: true}
	case snapshot.KindString:
		s, _ := v.Str()
		return bigquery.NullJSON{JSONVal: s, Valid: true}
	}
	return bigquery.NullJSON{}
}

func fromNullString(n bigquery.NullString) snapshot.Value {
	if !n.Valid {
		return snapshot.Null()
	}
	return snapshot.String(n.StringVal)
}

func fromNullInt64(n bigquery.NullInt64) snapshot.Value {
	if !n.Valid {
		return snapshot.Null()
	}
	return snapshot.Int(n.Int64)
}

func fromNullBool(n bigquery.NullBool) snapshot.Value {
	if !n.Valid {
		return snapshot.Null()
	}
	return snapshot.Bool(n.Bool)
}

func fromNullTimestamp(n bigquery.NullTimestamp) snapshot.Value {
	if !n.Valid {
		return snapshot.Null()
	}
	return snapshot.Timestamp(n.Timestamp)
}

// fromNullJSON decodes JSON text back into a nested value, falling back to
// the raw string when it does not parse.
func fromNullJSON(n bigquery.NullJSON) snapshot.Value {
	if !n.Valid {
		return snapshot.Null()
	}
	var v snapshot.Value
	if err := v.UnmarshalJSON([]byte(n.JSONVal)); err != nil {
		return snapshot.String(n.JSONVal)
	}
	return v
}
