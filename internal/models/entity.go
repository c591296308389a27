// Package models defines the core data structures for Satchel.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind identifies a domain entity type synced with the server.
// Values match the lowercase model names the server's delta endpoint uses
// as response keys.
type EntityKind string

const (
	KindSchool         EntityKind = "school"
	KindUser           EntityKind = "user"
	KindClassSection   EntityKind = "classsection"
	KindSubject        EntityKind = "subject"
	KindGradingScale   EntityKind = "gradingscale"
	KindGradingPeriod  EntityKind = "gradingperiod"
	KindEnrollment     EntityKind = "studentenrollment"
	KindGrade          EntityKind = "grade"
	KindAttendance     EntityKind = "attendance"
	KindReportCard     EntityKind = "reportcard"
	KindReportTemplate EntityKind = "reporttemplate"
)

// AllKinds returns every entity kind the store maintains a table for.
func AllKinds() []EntityKind {
	return []EntityKind{
		KindSchool, KindUser, KindClassSection, KindSubject,
		KindGradingScale, KindGradingPeriod, KindEnrollment,
		KindGrade, KindAttendance, KindReportCard, KindReportTemplate,
	}
}

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Endpoint returns the collection endpoint path for this kind.
func (k EntityKind) Endpoint() string {
	return fmt.Sprintf("/api/%s/", k)
}

// RecordEndpoint returns the canonical endpoint for a single record.
func (k EntityKind) RecordEndpoint(id string) string {
	return fmt.Sprintf("/api/%s/%s/", k, id)
}

// EntityRecord is one locally cached domain record. Every entity kind shares
// this row shape; the store maps each kind to its own table. The full server
// representation lives in Payload, with the columns the secondary indexes
// need extracted alongside it.
type EntityRecord struct {
	ID        string          `gorm:"primaryKey;size:64" json:"id"`
	SchoolID  int64           `gorm:"index" json:"school_id"`
	UpdatedAt time.Time       `gorm:"index" json:"updated_at"`
	Payload   json.RawMessage `gorm:"type:text" json:"payload"`
}

// Decode unmarshals the record payload into v.
func (r *EntityRecord) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("record %s has no payload", r.ID)
	}
	return json.Unmarshal(r.Payload, v)
}

// Fields returns the payload as a generic field map.
func (r *EntityRecord) Fields() (map[string]any, error) {
	var fields map[string]any
	if err := r.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// RecordFromJSON builds an EntityRecord from a raw server document,
// extracting the indexed columns. The id may arrive as a JSON number or
// string; both are normalized to the string id space.
func RecordFromJSON(raw json.RawMessage) (*EntityRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}

	id, err := StringID(fields["id"])
	if err != nil {
		return nil, err
	}

	return recordFromFields(id, raw, fields), nil
}

// RecordForObject builds an EntityRecord for a known object id. Unlike
// RecordFromJSON the document need not carry an id field, which partial
// update bodies legitimately omit.
func RecordForObject(id string, raw json.RawMessage) (*EntityRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return recordFromFields(id, raw, fields), nil
}

func recordFromFields(id string, raw json.RawMessage, fields map[string]json.RawMessage) *EntityRecord {
	rec := &EntityRecord{ID: id, Payload: raw}
	if sid, ok := fields["school_id"]; ok {
		// Ignore malformed or null tenant references; the record is
		// still cacheable, it just won't match a tenant index lookup.
		_ = json.Unmarshal(sid, &rec.SchoolID)
	}
	if ts, ok := fields["updated_at"]; ok {
		_ = json.Unmarshal(ts, &rec.UpdatedAt)
	}
	return rec
}

// StringID normalizes a raw JSON id value (number or string) into the
// string id space used by the local cache.
func StringID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("record has no id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("record has empty id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unsupported id value %s", string(raw))
	}
	return n.String(), nil
}
