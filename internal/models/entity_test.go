package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEntityKindEndpoints(t *testing.T) {
	if got := KindGrade.Endpoint(); got != "/api/grade/" {
		t.Errorf("Endpoint() = %q, want /api/grade/", got)
	}
	if got := KindClassSection.RecordEndpoint("42"); got != "/api/classsection/42/" {
		t.Errorf("RecordEndpoint() = %q, want /api/classsection/42/", got)
	}
}

func TestEntityKindValid(t *testing.T) {
	for _, kind := range AllKinds() {
		if !kind.Valid() {
			t.Errorf("kind %q should be valid", kind)
		}
	}
	if EntityKind("homework").Valid() {
		t.Error("unknown kind reported valid")
	}
}

func TestRecordFromJSON(t *testing.T) {
	raw := json.RawMessage(`{"id": 42, "school_id": 7, "updated_at": "2026-03-01T10:00:00Z", "score": 95}`)

	rec, err := RecordFromJSON(raw)
	if err != nil {
		t.Fatalf("RecordFromJSON() error = %v", err)
	}
	if rec.ID != "42" {
		t.Errorf("ID = %q, want 42", rec.ID)
	}
	if rec.SchoolID != 7 {
		t.Errorf("SchoolID = %d, want 7", rec.SchoolID)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !rec.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, want)
	}

	fields, err := rec.Fields()
	if err != nil {
		t.Fatalf("Fields() error = %v", err)
	}
	if fields["score"] != float64(95) {
		t.Errorf("score = %v, want 95", fields["score"])
	}
}

func TestRecordFromJSONStringID(t *testing.T) {
	raw := json.RawMessage(`{"id": "local-0b7c", "name": "draft"}`)

	rec, err := RecordFromJSON(raw)
	if err != nil {
		t.Fatalf("RecordFromJSON() error = %v", err)
	}
	if rec.ID != "local-0b7c" {
		t.Errorf("ID = %q, want local-0b7c", rec.ID)
	}
}

func TestRecordForObject(t *testing.T) {
	raw := json.RawMessage(`{"score": 95, "school_id": 7}`)

	rec, err := RecordForObject("42", raw)
	if err != nil {
		t.Fatalf("RecordForObject() error = %v", err)
	}
	if rec.ID != "42" {
		t.Errorf("ID = %q, want 42", rec.ID)
	}
	if rec.SchoolID != 7 {
		t.Errorf("SchoolID = %d, want 7", rec.SchoolID)
	}
}

func TestRecordFromJSONMissingID(t *testing.T) {
	if _, err := RecordFromJSON(json.RawMessage(`{"name": "no id"}`)); err == nil {
		t.Error("expected error for record without id")
	}
}

func TestLocalIDs(t *testing.T) {
	id := NewLocalID()
	if !IsLocalID(id) {
		t.Errorf("NewLocalID() = %q, not recognized as local", id)
	}
	if IsLocalID("42") {
		t.Error("server id misclassified as local")
	}
	if id == NewLocalID() {
		t.Error("local ids must be unique")
	}
}

func TestUserContextRoundTrip(t *testing.T) {
	ctx := &UserContext{UserID: 9, SchoolID: 3, Role: "teacher", Token: "tok"}

	encoded, err := ctx.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := DecodeUserContext(encoded)
	if err != nil {
		t.Fatalf("DecodeUserContext() error = %v", err)
	}
	if *decoded != *ctx {
		t.Errorf("round trip = %+v, want %+v", decoded, ctx)
	}

	empty, err := DecodeUserContext("")
	if err != nil {
		t.Fatalf("DecodeUserContext(\"\") error = %v", err)
	}
	if empty != nil {
		t.Errorf("empty value decoded to %+v, want nil", empty)
	}
}

func TestHasTenant(t *testing.T) {
	admin := &UserContext{UserID: 1, Role: "super_admin"}
	if admin.HasTenant() {
		t.Error("super admin without school should have no tenant")
	}
	teacher := &UserContext{UserID: 2, Role: "teacher", SchoolID: 5}
	if !teacher.HasTenant() {
		t.Error("teacher with school should have a tenant")
	}
}
