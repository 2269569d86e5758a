// Package trackingcode generates and validates public tracking codes of the
// form TAG-XXXXXX.
package trackingcode

import (
	"crypto/rand"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Alphabet excludes I, O, 0 and 1. Its size (32) divides 256, so one random
// byte maps to one symbol without bias.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultTag = "FAG"
	Length     = 6
)

type Generator struct {
	tag string
	src io.Reader
}

// New returns a generator for the given tag. A nil src means crypto/rand.
func New(tag string, src io.Reader) *Generator {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if tag == "" {
		tag = DefaultTag
	}
	if src == nil {
		src = rand.Reader
	}
	return &Generator{tag: tag, src: src}
}

func (g *Generator) Tag() string { return g.tag }

func (g *Generator) Generate() (string, error) {
	var buf [Length]byte
	if _, err := io.ReadFull(g.src, buf[:]); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}
	var b strings.Builder
	b.Grow(len(g.tag) + 1 + Length)
	b.WriteString(g.tag)
	b.WriteByte('-')
	for _, v := range buf {
		b.WriteByte(Alphabet[int(v)%len(Alphabet)])
	}
	return b.String(), nil
}

// IsValid normalizes candidate and checks it against TAG-XXXXXX.
func (g *Generator) IsValid(candidate string) bool {
	c := Normalize(candidate)
	prefix := g.tag + "-"
	if !strings.HasPrefix(c, prefix) {
		return false
	}
	rest := c[len(prefix):]
	if len(rest) != Length {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if strings.IndexByte(Alphabet, rest[i]) < 0 {
			return false
		}
	}
	return true
}

func Normalize(candidate string) string {
	return strings.ToUpper(strings.TrimSpace(candidate))
}
