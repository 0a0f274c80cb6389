package validate

import (
	"errors"
	"testing"

	"linkfolio/internal/apperr"
)

func TestEmail(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"a@x.com":          true,
		"first.last@ex.io": true,
		"":                 false,
		"not-an-email":     false,
		"Ada <a@x.com>":    false,
		"spaces in@x.com":  false,
	}
	for input, want := range cases {
		if got := Email(input); got != want {
			t.Fatalf("Email(%q) = %t, want %t", input, got, want)
		}
	}
}

func TestURLs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		web   bool
		link  bool
	}{
		{"https://example.com", true, true},
		{"http://example.com/path?q=1", true, true},
		{"mailto:hi@example.com", false, true},
		{"tel:+15551234", false, true},
		{"javascript:alert(1)", false, false},
		{"example.com", false, false},
		{"https://", false, false},
	}
	for _, tt := range cases {
		if got := WebURL(tt.input); got != tt.web {
			t.Fatalf("WebURL(%q) = %t, want %t", tt.input, got, tt.web)
		}
		if got := LinkURL(tt.input); got != tt.link {
			t.Fatalf("LinkURL(%q) = %t, want %t", tt.input, got, tt.link)
		}
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	errs := Errors{}
	if errs.Err() != nil {
		t.Fatal("expected nil error when nothing recorded")
	}
	errs.Check(Length("héllo", 1, 5), "name", "too long")
	errs.Check(Length("", 1, 5), "title", "required")
	errs.Add("title", "second message")

	err := errs.Err()
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := apperr.From(err).Fields
	if len(fields) != 1 || fields["title"] != "required" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
