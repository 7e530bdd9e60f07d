package utils

import "testing"

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice", "alice"},
		{"  Alice ", "alice"},
		{"Customer@Example.COM", "customer@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeUsername(tt.input); got != tt.expected {
			t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal string", "hello", "hello"},
		{"with control chars", "hello\x00world", "helloworld"},
		{"with newline", "hello\nworld", "hello\nworld"},
		{"with tabs", "hello\tworld", "hello\tworld"},
		{"with whitespace", "  hello  ", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeString(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string", "hello", 10, "hello"},
		{"long string", "hello world", 5, "he..."},
		{"very short max", "hello", 2, "he"},
		{"exact length", "hello", 5, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateString(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestLogSnippet(t *testing.T) {
	if got := LogSnippet("  {\"error\":\x07\"boom and more\"}  ", 12); got != "{\"error\":..." {
		t.Errorf("LogSnippet = %q", got)
	}
}
