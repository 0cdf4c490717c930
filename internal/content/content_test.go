package content

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "hello world", "hello world"},
		{"script removed", "hi<script>alert(1)</script>", "hi"},
		{"event handler stripped", `<img src="x" onerror="alert(1)">`, `<img src="x">`},
		{"safe markup kept", "<b>bold</b>", "<b>bold</b>"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.input); got != tc.expected {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"alice", "bob.smith", "user_1", "a-b"}
	for _, username := range valid {
		if err := ValidateUsername(username); err != nil {
			t.Errorf("ValidateUsername(%q) unexpected error: %v", username, err)
		}
	}

	invalid := []string{"", "with space", "semi;colon", "<script>", "名前"}
	for _, username := range invalid {
		if err := ValidateUsername(username); err == nil {
			t.Errorf("ValidateUsername(%q) expected error", username)
		}
	}
}
