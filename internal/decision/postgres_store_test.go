package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/fraudgate/internal/testutil"
)

func TestPostgresStore_RecordGetList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	s := NewPostgresStore(db)
	ctx := context.Background()

	d := &Decision{
		TransactionID: "pg-1",
		IsFraud:       true,
		FraudSource:   SourceRule,
		FraudReason:   "high value",
		FraudScore:    1.0,
		DecidedAt:     time.Now().UTC(),
	}
	if err := s.Record(ctx, d, 15000); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Get(ctx, "pg-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FraudReason != "high value" || !got.IsFraud || got.FraudScore != 1.0 {
		t.Errorf("Get = %+v", got)
	}

	if _, err := s.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) = %v, want ErrNotFound", err)
	}

	out, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("List len = %d, want 1", len(out))
	}
}

func TestPostgresStore_RecordDuplicate(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	s := NewPostgresStore(db)
	ctx := context.Background()

	d := &Decision{TransactionID: "pg-dup", FraudSource: SourceModel, FraudReason: "predicted by model", DecidedAt: time.Now().UTC()}
	if err := s.Record(ctx, d, 1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, d, 1); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Record = %v, want ErrDuplicate", err)
	}
}

func TestPostgresStore_ReportDuplicate(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	s := NewPostgresStore(db)
	ctx := context.Background()

	r := &FraudReport{
		TransactionID:     "pg-rep",
		ReportingEntityID: "bank-1",
		FraudDetails:      "confirmed fraud",
		ReportTime:        time.Now().UTC(),
	}
	if err := s.Report(ctx, r); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := s.Report(ctx, r); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Report = %v, want ErrDuplicate", err)
	}
}
