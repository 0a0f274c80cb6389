package avatar

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGravatarResolve(t *testing.T) {
	t.Parallel()

	g := NewGravatar()
	first, err := g.Resolve(context.Background(), "  Ada@Example.com ")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	second, err := g.Resolve(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected normalized emails to resolve identically: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "https://www.gravatar.com/avatar/") {
		t.Fatalf("unexpected url %q", first)
	}
	if !strings.Contains(first, "d=identicon") || !strings.Contains(first, "s=256") {
		t.Fatalf("expected query parameters in %q", first)
	}
}

func TestGravatarRejectsEmptyEmail(t *testing.T) {
	t.Parallel()

	if _, err := NewGravatar().Resolve(context.Background(), " "); !errors.Is(err, ErrNoEmail) {
		t.Fatalf("expected ErrNoEmail, got %v", err)
	}
}
