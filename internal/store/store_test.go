package store

import (
	"testing"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
)

func TestStampForAppend(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("EST", -5*3600))
	in := []domain.RawRow{{RowHash: "a"}, {RowHash: "b"}}

	out := StampForAppend(in, now)

	if in[0].IngestID != "" {
		t.Error("input rows must not be modified")
	}
	if out[0].IngestID == "" || out[0].IngestID != out[1].IngestID {
		t.Error("rows of one append share an ingest id")
	}
	if out[1].IngestSeq != out[0].IngestSeq+1 {
		t.Errorf("IngestSeq = %d, %d", out[0].IngestSeq, out[1].IngestSeq)
	}
	want := time.Date(2024, 5, 1, 17, 0, 0, 123456000, time.UTC)
	if !out[0].CreatedAt.Equal(want) || out[0].CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want %v", out[0].CreatedAt, want)
	}

	again := StampForAppend(in, now)
	if again[0].IngestID == out[0].IngestID {
		t.Error("each append gets its own ingest id")
	}
	if again[0].IngestSeq <= out[1].IngestSeq {
		t.Errorf("later append must sort after earlier one: %d <= %d", again[0].IngestSeq, out[1].IngestSeq)
	}
}
