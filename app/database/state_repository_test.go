package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLoadSchedulerStateEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStateRepo(db)

	mock.ExpectQuery("SELECT value FROM system_state").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{}`)))

	id, err := repo.LoadSchedulerState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != nil {
		t.Errorf("expected nil pending digest id, got %d", *id)
	}
}

func TestSchedulerStateRoundTrip(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStateRepo(db)

	mock.ExpectExec("INSERT INTO system_state").
		WithArgs([]byte(`{"pending_digest_id":7}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT value FROM system_state").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"pending_digest_id":7}`)))

	pending := int64(7)
	if err := repo.SaveSchedulerState(context.Background(), &pending); err != nil {
		t.Fatalf("unexpected error saving state: %v", err)
	}

	loaded, err := repo.LoadSchedulerState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error loading state: %v", err)
	}
	if loaded == nil || *loaded != 7 {
		t.Errorf("expected pending digest id 7, got %v", loaded)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSaveSchedulerStateClear(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStateRepo(db)

	mock.ExpectExec("INSERT INTO system_state").
		WithArgs([]byte(`{"pending_digest_id":null}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveSchedulerState(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
