package rfp

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusSent, StatusSent, true},
		{StatusSent, StatusClosed, true},
		{StatusDraft, StatusClosed, false},
		{StatusDraft, StatusDraft, false},
		{StatusSent, StatusDraft, false},
		{StatusClosed, StatusSent, false},
		{StatusClosed, StatusClosed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
