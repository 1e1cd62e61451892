package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"de", "de"},
		{"DE", "de"},
		{"deu", "de"},
		{"ger", "de"},
		{"German", "de"},
		{"de-DE", "de"},
		{"en-US", "en"},
		{"fra", "fr"},
		{"fre", "fr"},
		{" Dutch ", "nl"},
		{"", ""},
		{"not a language", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.input); got != tt.expected {
			t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"de", "German"},
		{"eng", "English"},
		{"", "Unknown"},
		{"zz-invalid", "ZZ-INVALID"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
