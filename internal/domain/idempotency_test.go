package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status IdempotencyStatus
		want   bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, want: true},
		{name: "done", status: IdempotencyStatusDone, want: true},
		{name: "failed", status: IdempotencyStatusFailed, want: true},
		{name: "invalid", status: IdempotencyStatus("broken"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestIdempotencyRecordCompletedAndExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rec := IdempotencyRecord{Status: IdempotencyStatusProcessing, TTLAt: now.Add(time.Minute)}
	if rec.Completed() {
		t.Fatal("processing record must not be completed")
	}
	if rec.Expired(now) {
		t.Fatal("record with future ttl must not be expired")
	}

	rec.Status = IdempotencyStatusFailed
	if !rec.Completed() {
		t.Fatal("failed record must be replayable")
	}
	if !rec.Expired(now.Add(time.Minute)) {
		t.Fatal("record must expire exactly at ttl")
	}
}
