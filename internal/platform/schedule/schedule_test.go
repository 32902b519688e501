package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		at       string
		wantErr  error
	}{
		{"valid", "Asia/Shanghai", "07:00", nil},
		{"valid utc", "UTC", "23:59", nil},
		{"bad timezone", "Mars/Olympus", "07:00", nil}, // wrapped LoadLocation error
		{"bad format", "UTC", "0700", ErrTimeFormat},
		{"hour out of range", "UTC", "24:00", ErrHourOutOfRange},
		{"bad minute", "UTC", "07:60", ErrInvalidMinute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.timezone, tt.at)

			switch {
			case tt.name == "bad timezone":
				if err == nil {
					t.Error("expected timezone error")
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	s, err := New("UTC", "07:00")
	if err != nil {
		t.Fatal(err)
	}

	before := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	next := s.NextRun(before)

	want := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("NextRun before run time = %v, want %v", next, want)
	}

	after := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	next = s.NextRun(after)

	want = time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("NextRun after run time = %v, want %v", next, want)
	}
}

func TestNextRunExactlyAtRunTime(t *testing.T) {
	s, err := New("UTC", "07:00")
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	next := s.NextRun(at)

	if !next.After(at) {
		t.Errorf("NextRun at run time = %v, want strictly after %v", next, at)
	}
}
