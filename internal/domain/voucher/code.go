package voucher

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet leaves out characters that are easy to misread at a till (0/O, 1/I/L)
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeGenerator produces voucher codes
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator builds codes like VC-7KQ4-M2XP
type RandomCodeGenerator struct {
	Prefix    string
	Groups    int
	GroupSize int
}

// NewRandomCodeGenerator creates a generator with two groups of four characters
func NewRandomCodeGenerator(prefix string) *RandomCodeGenerator {
	if prefix == "" {
		prefix = "VC"
	}
	return &RandomCodeGenerator{Prefix: prefix, Groups: 2, GroupSize: 4}
}

// Generate returns a fresh code. Uniqueness is enforced by the store.
func (g *RandomCodeGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	parts := make([]string, 0, g.Groups+1)
	if g.Prefix != "" {
		parts = append(parts, g.Prefix)
	}
	for i := 0; i < g.Groups; i++ {
		var b strings.Builder
		for j := 0; j < g.GroupSize; j++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("failed to generate voucher code: %w", err)
			}
			b.WriteByte(codeAlphabet[n.Int64()])
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "-"), nil
}

// NormalizeCode upper-cases a typed code and drops stray spaces
func NormalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(code)), " ", "")
}
