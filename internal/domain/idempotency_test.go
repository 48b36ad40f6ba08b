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

func TestIdempotencyRecordExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if (IdempotencyRecord{}).Expired(now) {
		t.Fatalf("record without ttl must not expire")
	}
	if !(IdempotencyRecord{TTLAt: now}).Expired(now) {
		t.Fatalf("record with ttl == now must be expired")
	}
	if (IdempotencyRecord{TTLAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("record with future ttl must not expire")
	}
}
