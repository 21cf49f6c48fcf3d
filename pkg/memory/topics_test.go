package memory

import (
	"reflect"
	"testing"
)

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"single topic", "I love AI these days", []string{"ai"}},
		{"multiple topics in vocabulary order", "design meets technology", []string{"technology", "design"}},
		{"word boundaries respected", "maintain the chair", nil},
		{"punctuation ignored", "Art, science... and ethics!", []string{"art", "science", "ethics"}},
		{"no topics", "hello world", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTopics(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTopics(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}
