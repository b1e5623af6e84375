package tui

import (
	"testing"

	"aidm/internal/domain"
)

func TestAttributeSummary(t *testing.T) {
	tests := []struct {
		name  string
		attrs []domain.Attribute
		want  string
	}{
		{
			name:  "empty",
			attrs: nil,
			want:  "0/5",
		},
		{
			name:  "partial",
			attrs: []domain.Attribute{{Label: "Name", Value: "Aerth"}, {Label: "Geography", Value: "forest"}},
			want:  "2/5 · Name, Geography",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attributeSummary(tt.attrs, 5); got != tt.want {
				t.Errorf("attributeSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abcd1234-5678-90ab"); got != "abcd1234" {
		t.Errorf("Expected truncated id, got %q", got)
	}
	if got := shortID("tiny"); got != "tiny" {
		t.Errorf("Short ids pass through, got %q", got)
	}
}
