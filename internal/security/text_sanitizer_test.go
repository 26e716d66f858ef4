package security

import "testing"

func TestSanitizeText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Jane Doe", "Jane Doe"},
		{"trims", "  Jane Doe \n", "Jane Doe"},
		{"strips tags", "<b>Jane</b> Doe", "Jane Doe"},
		{"removes script", `Jane<script>alert("x")</script>`, "Jane"},
		{"removes event handler element", `<img src=x onerror=alert(1)>Jane`, "Jane"},
		{"escapes ampersand", "Art & Design", "Art &amp; Design"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := `<p>Industrial <em>Design</em></p>`
	first := s.SanitizeText(input)
	if second := s.SanitizeText(first); first != second {
		t.Errorf("not idempotent: %q then %q", first, second)
	}
}

func TestSanitizeLink(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"https", "https://example.com/portfolio", "https://example.com/portfolio"},
		{"http", "http://example.com", "http://example.com"},
		{"relative image", "images/jane.jpg", "images/jane.jpg"},
		{"javascript", "javascript:alert(1)", ""},
		{"data", "data:text/html;base64,PHNjcmlwdD4=", ""},
		{"mixed case javascript", "JaVaScRiPt:alert(1)", ""},
		{"protocol relative", "//evil.example.com/x", ""},
		{"scheme without host", "https:///nowhere", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeLink(tt.input); got != tt.want {
				t.Errorf("SanitizeLink(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
