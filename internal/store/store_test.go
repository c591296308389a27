package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// testStore creates a temporary test database.
func testStore(t *testing.T) *Store {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	st, err := New(Config{
		Path:        dbPath,
		Debug:       false,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Logf("Failed to close test store: %v", err)
		}
	})

	return st
}

func record(id string, schoolID int64, updatedAt time.Time, payload string) *models.EntityRecord {
	return &models.EntityRecord{
		ID:        id,
		SchoolID:  schoolID,
		UpdatedAt: updatedAt,
		Payload:   json.RawMessage(payload),
	}
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "satchel.db")

	st, err := New(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			t.Logf("Failed to close store: %v", err)
		}
	}()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	if st.Path() != dbPath {
		t.Errorf("Path() = %v, want %v", st.Path(), dbPath)
	}
}

func TestPutAndGet(t *testing.T) {
	st := testStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := record("42", 7, now, `{"id": 42, "name": "Algebra I"}`)

	if err := st.Put(models.KindSubject, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := st.Get(models.KindSubject, "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for existing record")
	}
	if got.SchoolID != 7 {
		t.Errorf("SchoolID = %d, want 7", got.SchoolID)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}

	// Upsert replaces the payload
	rec2 := record("42", 7, now.Add(time.Minute), `{"id": 42, "name": "Algebra II"}`)
	if err := st.Put(models.KindSubject, rec2); err != nil {
		t.Fatalf("Put() upsert error = %v", err)
	}

	got, err = st.Get(models.KindSubject, "42")
	if err != nil {
		t.Fatalf("Get() after upsert error = %v", err)
	}
	fields, err := got.Fields()
	if err != nil {
		t.Fatalf("Fields() error = %v", err)
	}
	if fields["name"] != "Algebra II" {
		t.Errorf("name = %v, want Algebra II", fields["name"])
	}
}

func TestGetMissing(t *testing.T) {
	st := testStore(t)

	got, err := st.Get(models.KindGrade, "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %v, want nil for missing record", got)
	}
}

func TestGetAllFilters(t *testing.T) {
	st := testStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	recs := []*models.EntityRecord{
		record("1", 1, base.Add(-2*time.Hour), `{"id": 1}`),
		record("2", 1, base, `{"id": 2}`),
		record("3", 2, base, `{"id": 3}`),
	}
	if err := st.PutBatch(models.KindAttendance, recs); err != nil {
		t.Fatalf("PutBatch() error = %v", err)
	}

	all, err := st.GetAll(models.KindAttendance, nil)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("GetAll() returned %d records, want 3", len(all))
	}

	schoolID := int64(1)
	bySchool, err := st.GetAll(models.KindAttendance, &Filter{SchoolID: &schoolID})
	if err != nil {
		t.Fatalf("GetAll(school) error = %v", err)
	}
	if len(bySchool) != 2 {
		t.Errorf("GetAll(school) returned %d records, want 2", len(bySchool))
	}

	since := base.Add(-time.Hour)
	recent, err := st.GetAll(models.KindAttendance, &Filter{UpdatedSince: &since})
	if err != nil {
		t.Fatalf("GetAll(since) error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("GetAll(since) returned %d records, want 2", len(recent))
	}
}

func TestDeleteRecordAndClearKind(t *testing.T) {
	st := testStore(t)

	if err := st.Put(models.KindGrade, record("1", 1, time.Now(), `{"id": 1}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Put(models.KindGrade, record("2", 1, time.Now(), `{"id": 2}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := st.DeleteRecord(models.KindGrade, "1"); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	got, err := st.Get(models.KindGrade, "1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("record still present after DeleteRecord")
	}

	if err := st.ClearKind(models.KindGrade); err != nil {
		t.Fatalf("ClearKind() error = %v", err)
	}
	all, err := st.GetAll(models.KindGrade, nil)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("ClearKind left %d records", len(all))
	}
}

func TestRenameRecord(t *testing.T) {
	st := testStore(t)

	localID := models.NewLocalID()
	if err := st.Put(models.KindGrade, record(localID, 1, time.Now(), `{"score": 95}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	serverRec := record("1001", 1, time.Now(), `{"id": 1001, "score": 95}`)
	if err := st.RenameRecord(models.KindGrade, localID, serverRec); err != nil {
		t.Fatalf("RenameRecord() error = %v", err)
	}

	old, err := st.Get(models.KindGrade, localID)
	if err != nil {
		t.Fatalf("Get(old) error = %v", err)
	}
	if old != nil {
		t.Error("local-id record still present after rename")
	}

	renamed, err := st.Get(models.KindGrade, "1001")
	if err != nil {
		t.Fatalf("Get(new) error = %v", err)
	}
	if renamed == nil {
		t.Fatal("server-id record missing after rename")
	}
}

func TestPendingOperationOrder(t *testing.T) {
	st := testStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		op := &models.PendingOperation{
			Kind:      models.KindGrade,
			Method:    "POST",
			Endpoint:  models.KindGrade.Endpoint(),
			Payload:   json.RawMessage(`{}`),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.AddPendingOperation(op); err != nil {
			t.Fatalf("AddPendingOperation() error = %v", err)
		}
	}

	ops, err := st.PendingOperations(models.OperationPending)
	if err != nil {
		t.Fatalf("PendingOperations() error = %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d operations, want 3", len(ops))
	}
	for i := 1; i < len(ops); i++ {
		if ops[i].CreatedAt.Before(ops[i-1].CreatedAt) {
			t.Errorf("operations out of creation order at index %d", i)
		}
	}
}

func TestAddPendingOperationForcesFreshState(t *testing.T) {
	st := testStore(t)

	op := &models.PendingOperation{
		Kind:       models.KindGrade,
		Method:     "POST",
		Endpoint:   models.KindGrade.Endpoint(),
		Payload:    json.RawMessage(`{}`),
		Status:     models.OperationStalled,
		RetryCount: 9,
		CreatedAt:  time.Now(),
	}
	if err := st.AddPendingOperation(op); err != nil {
		t.Fatalf("AddPendingOperation() error = %v", err)
	}

	got, err := st.GetOperation(op.ID)
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	if got.Status != models.OperationPending {
		t.Errorf("Status = %v, want pending", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", got.RetryCount)
	}
}

func TestRequeueStalled(t *testing.T) {
	st := testStore(t)

	op := &models.PendingOperation{
		Kind:      models.KindGrade,
		Method:    "POST",
		Endpoint:  models.KindGrade.Endpoint(),
		Payload:   json.RawMessage(`{}`),
		CreatedAt: time.Now(),
	}
	if err := st.AddPendingOperation(op); err != nil {
		t.Fatalf("AddPendingOperation() error = %v", err)
	}

	op.Status = models.OperationStalled
	op.RetryCount = 25
	op.LastError = "server error"
	if err := st.SaveOperation(op); err != nil {
		t.Fatalf("SaveOperation() error = %v", err)
	}

	requeued, err := st.RequeueStalled()
	if err != nil {
		t.Fatalf("RequeueStalled() error = %v", err)
	}
	if requeued != 1 {
		t.Errorf("RequeueStalled() = %d, want 1", requeued)
	}

	got, err := st.GetOperation(op.ID)
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	if got.Status != models.OperationPending || got.RetryCount != 0 || got.LastError != "" {
		t.Errorf("requeued op = %+v, want pending with clean retry state", got)
	}
}

func TestConflicts(t *testing.T) {
	st := testStore(t)

	opID := uint(5)
	c := &models.Conflict{
		Kind:        models.KindGrade,
		ObjectID:    "42",
		ServerData:  json.RawMessage(`{"score": 80}`),
		LocalData:   json.RawMessage(`{"score": 95}`),
		OperationID: &opID,
		DetectedAt:  time.Now(),
	}
	if err := st.AddConflict(c); err != nil {
		t.Fatalf("AddConflict() error = %v", err)
	}

	all, err := st.Conflicts()
	if err != nil {
		t.Fatalf("Conflicts() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(all))
	}
	if all[0].OperationID == nil || *all[0].OperationID != opID {
		t.Errorf("OperationID = %v, want %d", all[0].OperationID, opID)
	}

	byObject, err := st.ConflictsForObject(models.KindGrade, "42")
	if err != nil {
		t.Fatalf("ConflictsForObject() error = %v", err)
	}
	if len(byObject) != 1 {
		t.Errorf("ConflictsForObject() returned %d, want 1", len(byObject))
	}

	if err := st.RemoveConflict(c.ID); err != nil {
		t.Fatalf("RemoveConflict() error = %v", err)
	}
	count, err := st.CountConflicts()
	if err != nil {
		t.Fatalf("CountConflicts() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountConflicts() = %d, want 0", count)
	}
}

func TestLastSyncTimeDefault(t *testing.T) {
	st := testStore(t)

	got, err := st.LastSyncTime()
	if err != nil {
		t.Fatalf("LastSyncTime() error = %v", err)
	}

	// Unset last sync falls back to a 24h window
	age := time.Since(got)
	if age < 23*time.Hour || age > 25*time.Hour {
		t.Errorf("default LastSyncTime age = %v, want ~24h", age)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := st.SetLastSyncTime(now); err != nil {
		t.Fatalf("SetLastSyncTime() error = %v", err)
	}
	got, err = st.LastSyncTime()
	if err != nil {
		t.Fatalf("LastSyncTime() error = %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("LastSyncTime() = %v, want %v", got, now)
	}
}

func TestUserContextRoundTrip(t *testing.T) {
	st := testStore(t)

	got, err := st.UserContext()
	if err != nil {
		t.Fatalf("UserContext() error = %v", err)
	}
	if got != nil {
		t.Errorf("UserContext() = %v, want nil before login", got)
	}

	ctx := &models.UserContext{
		UserID:   17,
		SchoolID: 3,
		Role:     "teacher",
		Token:    "jwt-token",
	}
	if err := st.SetUserContext(ctx); err != nil {
		t.Fatalf("SetUserContext() error = %v", err)
	}

	got, err = st.UserContext()
	if err != nil {
		t.Fatalf("UserContext() error = %v", err)
	}
	if got == nil || got.Token != "jwt-token" || got.SchoolID != 3 {
		t.Errorf("UserContext() = %+v, want stored context", got)
	}

	if err := st.ClearUserContext(); err != nil {
		t.Fatalf("ClearUserContext() error = %v", err)
	}
	got, err = st.UserContext()
	if err != nil {
		t.Fatalf("UserContext() error = %v", err)
	}
	if got != nil {
		t.Errorf("UserContext() = %v, want nil after clear", got)
	}
}

func TestOfflineChanges(t *testing.T) {
	st := testStore(t)

	change := &models.OfflineChange{
		Kind:      models.KindAttendance,
		ObjectID:  "local-abc",
		Action:    models.ActionCreate,
		Payload:   json.RawMessage(`{"present": true}`),
		CreatedAt: time.Now(),
	}
	if err := st.AddOfflineChange(change); err != nil {
		t.Fatalf("AddOfflineChange() error = %v", err)
	}

	dirty, err := st.HasOfflineChanges(models.KindAttendance, "local-abc")
	if err != nil {
		t.Fatalf("HasOfflineChanges() error = %v", err)
	}
	if !dirty {
		t.Error("HasOfflineChanges() = false, want true")
	}

	if err := st.ReassignOfflineObject(models.KindAttendance, "local-abc", "900"); err != nil {
		t.Fatalf("ReassignOfflineObject() error = %v", err)
	}
	dirty, err = st.HasOfflineChanges(models.KindAttendance, "900")
	if err != nil {
		t.Fatalf("HasOfflineChanges() error = %v", err)
	}
	if !dirty {
		t.Error("change not tracked under server id after reassign")
	}

	if err := st.RemoveOfflineChangesForObject(models.KindAttendance, "900"); err != nil {
		t.Fatalf("RemoveOfflineChangesForObject() error = %v", err)
	}
	dirty, err = st.HasOfflineChanges(models.KindAttendance, "900")
	if err != nil {
		t.Fatalf("HasOfflineChanges() error = %v", err)
	}
	if dirty {
		t.Error("change still tracked after removal")
	}
}

func TestRemoveOfflineChangesBefore(t *testing.T) {
	st := testStore(t)

	base := time.Now().Add(-time.Hour)
	older := &models.OfflineChange{
		Kind:      models.KindGrade,
		ObjectID:  "42",
		Action:    models.ActionUpdate,
		Payload:   json.RawMessage(`{"score": 90}`),
		CreatedAt: base,
	}
	newer := &models.OfflineChange{
		Kind:      models.KindGrade,
		ObjectID:  "42",
		Action:    models.ActionUpdate,
		Payload:   json.RawMessage(`{"score": 95}`),
		CreatedAt: base.Add(time.Minute),
	}
	for _, c := range []*models.OfflineChange{older, newer} {
		if err := st.AddOfflineChange(c); err != nil {
			t.Fatalf("AddOfflineChange() error = %v", err)
		}
	}

	if err := st.RemoveOfflineChangesBefore(models.KindGrade, "42", base); err != nil {
		t.Fatalf("RemoveOfflineChangesBefore() error = %v", err)
	}

	changes, err := st.OfflineChanges(models.KindGrade)
	if err != nil {
		t.Fatalf("OfflineChanges() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("OfflineChanges() = %d changes, want 1", len(changes))
	}
	if changes[0].ID != newer.ID {
		t.Errorf("surviving change = #%d, want the newer #%d", changes[0].ID, newer.ID)
	}
}

func TestClearAllData(t *testing.T) {
	st := testStore(t)

	if err := st.Put(models.KindSchool, record("1", 1, time.Now(), `{"id": 1}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	op := &models.PendingOperation{
		Kind:      models.KindGrade,
		Method:    "POST",
		Endpoint:  models.KindGrade.Endpoint(),
		Payload:   json.RawMessage(`{}`),
		CreatedAt: time.Now(),
	}
	if err := st.AddPendingOperation(op); err != nil {
		t.Fatalf("AddPendingOperation() error = %v", err)
	}

	if err := st.ClearAllData(); err != nil {
		t.Fatalf("ClearAllData() error = %v", err)
	}

	all, err := st.GetAll(models.KindSchool, nil)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("entity records remain after wipe")
	}
	count, err := st.CountOperations(models.OperationPending)
	if err != nil {
		t.Fatalf("CountOperations() error = %v", err)
	}
	if count != 0 {
		t.Errorf("pending operations remain after wipe")
	}
}

func TestTransactionRollback(t *testing.T) {
	st := testStore(t)

	err := st.Transaction(func(tx *Store) error {
		if err := tx.Put(models.KindGrade, record("1", 1, time.Now(), `{"id": 1}`)); err != nil {
			return err
		}
		return os.ErrInvalid
	})
	if err == nil {
		t.Fatal("Transaction() did not propagate error")
	}

	got, err := st.Get(models.KindGrade, "1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("write survived rolled-back transaction")
	}
}
