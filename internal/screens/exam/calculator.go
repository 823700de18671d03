package exam

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errEmptyExpression = errors.New("empty expression")
	errDivideByZero    = errors.New("division by zero")
)

// Evaluate computes a single binary expression "a op b" where op is one of
// + - * x /. A lone number evaluates to itself. Operands may be signed.
func Evaluate(expr string) (float64, error) {
	expr = strings.ReplaceAll(strings.TrimSpace(expr), ",", "")
	if expr == "" {
		return 0, errEmptyExpression
	}
	for i := 1; i < len(expr); i++ {
		op := expr[i]
		if !strings.ContainsRune("+-*x/", rune(op)) {
			continue
		}
		left := strings.TrimSpace(expr[:i])
		if left == "" {
			continue
		}
		// A minus directly after another operator is the sign of b.
		if last := left[len(left)-1]; (last < '0' || last > '9') && last != '.' {
			continue
		}
		a, err := parseOperand(left)
		if err != nil {
			return 0, err
		}
		b, err := parseOperand(expr[i+1:])
		if err != nil {
			return 0, err
		}
		return apply(a, op, b)
	}
	return parseOperand(expr)
}

func parseOperand(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("operand %q: not a number", s)
	}
	return v, nil
}

func apply(a float64, op byte, b float64) (float64, error) {
	switch op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*', 'x':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, errDivideByZero
		}
		return a / b, nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

// formatResult trims binary floating point noise such as 0.30000000000000004.
func formatResult(v float64) string {
	v = math.Round(v*1e10) / 1e10
	return strconv.FormatFloat(v, 'f', -1, 64)
}
