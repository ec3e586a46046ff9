package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator produces the secret sent to the user.
type CodeGenerator interface {
	Generate() (string, error)
}

// NumericCodeGenerator draws each digit uniformly from crypto/rand.
type NumericCodeGenerator struct {
	length int
}

func NewNumericCodeGenerator(length int) *NumericCodeGenerator {
	if length <= 0 {
		length = 6
	}
	return &NumericCodeGenerator{length: length}
}

func (g *NumericCodeGenerator) Generate() (string, error) {
	digits := make([]byte, g.length)
	ten := big.NewInt(10)
	for i := range digits {
		num, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}
	return string(digits), nil
}
