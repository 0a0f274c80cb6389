// Package avatar computes fallback profile images from an email address.
package avatar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrNoEmail is returned when there is nothing to derive an avatar from.
var ErrNoEmail = errors.New("avatar: email is empty")

// Resolver returns an image URL for an email address.
type Resolver interface {
	Resolve(ctx context.Context, email string) (string, error)
}

// Gravatar resolves identicon-backed Gravatar URLs.
type Gravatar struct {
	BaseURL string
	Size    int
}

// NewGravatar returns a resolver pointing at the public Gravatar service.
func NewGravatar() *Gravatar {
	return &Gravatar{BaseURL: "https://www.gravatar.com/avatar/", Size: 256}
}

func (g *Gravatar) Resolve(_ context.Context, email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrNoEmail
	}
	base, err := url.Parse(g.BaseURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(normalized))
	base = base.JoinPath(hex.EncodeToString(sum[:]))

	q := base.Query()
	q.Set("d", "identicon")
	if g.Size > 0 {
		q.Set("s", strconv.Itoa(g.Size))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// Noop never resolves an image.
type Noop struct{}

func (Noop) Resolve(context.Context, string) (string, error) {
	return "", nil
}
