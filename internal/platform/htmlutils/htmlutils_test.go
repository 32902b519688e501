package htmlutils

import "testing"

func TestStripHTMLTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no tags here", "no tags here"},
		{"simple tags", "<p>hello <b>world</b></p>", "hello world"},
		{"entities", "A &amp; B", "A & B"},
		{"script removed", "<script>var x = 1;</script>body", "body"},
		{"style removed", "<style>p { color: red }</style>text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTMLTags(tt.in); got != tt.want {
				t.Errorf("StripHTMLTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "line  one\n\n\n\n  line   two  \n"
	want := "line one\n\nline two"

	if got := CollapseWhitespace(in); got != want {
		t.Errorf("CollapseWhitespace = %q, want %q", got, want)
	}
}
