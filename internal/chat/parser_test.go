package chat_test

import (
	"testing"

	"github.com/Yunkai-Xiao/MisakiCat/internal/chat"
)

func TestCleanResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "well formed with stray closing tag",
			input:    "[THINKING]\nfoo\n[/THINKING]\n[RESPONSE]\nHello **world**\n[/THINKING]",
			expected: "Hello world",
		},
		{
			name:     "response stops at next thinking section",
			input:    "[RESPONSE]\nFirst answer\n[THINKING]\nsecond thoughts\n[/THINKING]",
			expected: "First answer",
		},
		{
			name:     "lowercase tags",
			input:    "[thinking]hmm[/thinking]\n[response]\n  Sure thing.  ",
			expected: "Sure thing.",
		},
		{
			name:     "no response tag, closed thinking block",
			input:    "[THINKING]\nplanning\n[/THINKING]\nThe answer is 42.",
			expected: "The answer is 42.",
		},
		{
			name:     "no response tag, text around thinking block",
			input:    "Intro. [THINKING]secret[/THINKING] Outro.",
			expected: "Intro.  Outro.",
		},
		{
			name:     "no response tag, unclosed thinking strips to end",
			input:    "Visible part\n[THINKING]\nthe model ran out of tokens",
			expected: "Visible part",
		},
		{
			name:     "only unclosed thinking",
			input:    "[THINKING]\nstill thinking...",
			expected: "",
		},
		{
			name:     "plain text passes through",
			input:    "  Just a plain answer.\n",
			expected: "Just a plain answer.",
		},
		{
			name:     "underscore emphasis removed",
			input:    "[RESPONSE]__bold__ and **strong**",
			expected: "bold and strong",
		},
		{
			name:     "single asterisks are kept",
			input:    "[RESPONSE]*italic* stays",
			expected: "*italic* stays",
		},
		{
			name:     "empty response section",
			input:    "[THINKING]x[/THINKING]\n[RESPONSE]\n   ",
			expected: "",
		},
		{
			name:     "inline thinking inside response section",
			input:    "[RESPONSE] Sure. [THINKING]user wants secret plan[/THINKING]",
			expected: "Sure.",
		},
		{
			name:     "unclosed thinking inside response section",
			input:    "[RESPONSE]\nHere you go. [THINKING] and then I ran out",
			expected: "Here you go.",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "multiline response kept intact",
			input:    "[RESPONSE]\nline one\nline two\n\nline four",
			expected: "line one\nline two\n\nline four",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := chat.CleanResponse(tt.input); got != tt.expected {
				t.Errorf("CleanResponse(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{name: "under limit", input: "abc", limit: 5, expected: "abc"},
		{name: "at limit", input: "abcde", limit: 5, expected: "abcde"},
		{name: "over limit", input: "abcdef", limit: 5, expected: "abcde"},
		{name: "counts runes not bytes", input: "héllo wörld", limit: 5, expected: "héllo"},
		{name: "disabled", input: "abcdef", limit: 0, expected: "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := chat.Truncate(tt.input, tt.limit); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
			}
		})
	}
}
