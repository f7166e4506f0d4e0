package agent

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean payload untouched",
			input: `{"a":1}`,
			want:  `{"a":1}`,
		},
		{
			name:  "plain fence",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "fence with language tag",
			input: "```json\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "leading filler",
			input: "Sure, here is the JSON you asked for:\n{\"a\":1}",
			want:  `{"a":1}`,
		},
		{
			name:  "filler then fence",
			input: "Here's the output:\n```json\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "unterminated fence left alone",
			input: "```json\n{\"a\":1}",
			want:  "```json\n{\"a\":1}",
		},
		{
			name:  "surrounding whitespace",
			input: "  \n\n{\"a\":1}\n\n  ",
			want:  `{"a":1}`,
		},
		{
			name:  "multiline payload inside fence",
			input: "```\n{\n  \"a\": 1\n}\n```",
			want:  "{\n  \"a\": 1\n}",
		},
		{
			name:  "non-filler prose preserved",
			input: "WARNING: partial data\n{\"a\":1}",
			want:  "WARNING: partial data\n{\"a\":1}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		`{"a":1}`,
		"```json\n{\"a\":1}\n```",
		"Sure, here you go:\n```\n[1,2,3]\n```",
		"plain text response",
		"",
	}
	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", input, once, twice)
		}
	}
}
