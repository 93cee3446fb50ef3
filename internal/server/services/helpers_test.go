package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

const timeHour = time.Hour

// sqlmockExpect queues the transaction outcomes dbx.WithTx produces.
type sqlmockExpect struct {
	mock sqlmock.Sqlmock
}

func (s sqlmockExpect) txOK() {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()
}

func (s sqlmockExpect) txRollback() {
	s.mock.ExpectBegin()
	s.mock.ExpectRollback()
}

func (s sqlmockExpect) met(t *testing.T) {
	t.Helper()
	if err := s.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
