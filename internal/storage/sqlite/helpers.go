// ABOUTME: Shared scan/encode helpers for the SQLite stores
// ABOUTME: JSON column codecs, nullable wrappers, float32 vector blobs
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
)

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullIntPtr converts a *int to sql.NullInt64
func nullIntPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// nullInt64Ptr converts a *int64 to sql.NullInt64
func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullFloatPtr converts a *float64 to sql.NullFloat64
func nullFloatPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// nullBoolPtr converts a *bool to sql.NullBool
func nullBoolPtr(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

// jsonText marshals v for a TEXT column; nil-ish values become empty string
func jsonText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		if len(t) == 0 {
			return ""
		}
	case map[string][]string:
		if len(t) == 0 {
			return ""
		}
	case map[string]int:
		if len(t) == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// fromJSONText unmarshals a TEXT column into out; empty input is a no-op
func fromJSONText(s sql.NullString, out interface{}) {
	if !s.Valid || s.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(s.String), out)
}

// EncodeVector serializes a float32 vector as a little-endian blob,
// the layout sqlite-vec expects.
func EncodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a little-endian float32 blob
func DecodeVector(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
