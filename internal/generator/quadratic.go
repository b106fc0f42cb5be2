// Package generator produces quiz questions.
package generator

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/quiz"
)

const maxRoot = 10

// Rand is a random source safe for concurrent use by many sessions.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRand(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.r.IntN(n)
}

// Equation is a*x^2 + b*x + c = 0 with rational roots. Roots are ascending and distinct.
type Equation struct {
	A, B, C decimal.Decimal
	Roots   []decimal.Decimal

	factors [2]factor
}

// factor is (k*x - m), whose root is m/k.
type factor struct {
	k, m int64
}

func (f factor) root() decimal.Decimal {
	return decimal.NewFromInt(f.m).Div(decimal.NewFromInt(f.k))
}

func (f factor) String() string {
	x := "x"
	if f.k != 1 {
		x = fmt.Sprintf("%dx", f.k)
	}

	switch {
	case f.m == 0:
		return x
	case f.m > 0:
		return fmt.Sprintf("(%s - %d)", x, f.m)
	default:
		return fmt.Sprintf("(%s + %d)", x, -f.m)
	}
}

// NewEquation picks a leading coefficient of 1 or 2. With 2, one root may be a
// half-integer while the coefficients stay integers.
func NewEquation(r *Rand) Equation {
	root := func() int64 { return int64(r.IntN(2*maxRoot+1) - maxRoot) }

	f1 := factor{k: 1, m: root()}
	f2 := factor{k: 1, m: root()}
	if r.IntN(2) == 1 {
		f1 = factor{k: 2, m: int64(r.IntN(4*maxRoot+1) - 2*maxRoot)}
	}

	return newEquation(f1, f2)
}

// newEquation expands f1*f2 = 0.
func newEquation(f1, f2 factor) Equation {
	a := decimal.NewFromInt(f1.k * f2.k)
	r1, r2 := f1.root(), f2.root()

	e := Equation{
		A:       a,
		B:       a.Mul(r1.Add(r2)).Neg(),
		C:       a.Mul(r1).Mul(r2),
		factors: [2]factor{f1, f2},
	}

	e.Roots = []decimal.Decimal{r1}
	if !r1.Equal(r2) {
		e.Roots = append(e.Roots, r2)
	}
	slices.SortFunc(e.Roots, func(x, y decimal.Decimal) int { return x.Cmp(y) })

	return e
}

func (e Equation) String() string {
	var sb strings.Builder

	if !e.A.Equal(decimal.NewFromInt(1)) {
		sb.WriteString(e.A.String())
	}
	sb.WriteString("x^2")
	writeTerm(&sb, e.B, "x")
	writeTerm(&sb, e.C, "")
	sb.WriteString(" = 0")

	return sb.String()
}

func writeTerm(sb *strings.Builder, coef decimal.Decimal, variable string) {
	if coef.IsZero() {
		return
	}

	sign := " + "
	if coef.IsNegative() {
		sign = " - "
	}
	sb.WriteString(sign)

	abs := coef.Abs()
	if variable == "" || !abs.Equal(decimal.NewFromInt(1)) {
		sb.WriteString(abs.String())
	}
	sb.WriteString(variable)
}

// Answer lists the roots ascending, e.g. "-0.5, 2".
func (e Equation) Answer() string {
	roots := make([]string, 0, len(e.Roots))
	for _, r := range e.Roots {
		roots = append(roots, r.String())
	}
	return strings.Join(roots, ", ")
}

// Solution shows the factorization and the roots.
func (e Equation) Solution() string {
	f1, f2 := e.factors[0], e.factors[1]

	var f string
	switch {
	case f1.m == 0 && f2.m == 0:
		f = "x^2"
		if k := f1.k * f2.k; k != 1 {
			f = fmt.Sprintf("%dx^2", k)
		}
	case f1 == f2:
		f = f1.String() + "^2"
	case f2.m == 0:
		// The bare x factor goes first: x(2x - 3), not (2x - 3)x.
		f = f2.String() + f1.String()
	default:
		f = f1.String() + f2.String()
	}

	xs := make([]string, 0, len(e.Roots))
	for _, r := range e.Roots {
		xs = append(xs, "x = "+r.String())
	}

	return fmt.Sprintf("%s = 0, so %s", f, strings.Join(xs, " or "))
}

func (e Equation) Quiz() domain.Quiz {
	return domain.Quiz{
		Question: e.String(),
		Answer:   e.Answer(),
		Solution: e.Solution(),
	}
}

// Quadratic generates quadratic equations to solve for x.
func Quadratic(r *Rand) quiz.Source {
	return func() (domain.Quiz, error) {
		return NewEquation(r).Quiz(), nil
	}
}
