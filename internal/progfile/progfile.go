// Package progfile parses the text format of probabilistic programs.
// This is host-side glue: the inference core only ever sees the
// resolved program structure.
//
// Format, one statement per line:
//
//	0.3::a.              probabilistic fact
//	0.3?::a.             learnable probabilistic fact
//	[0.2, 0.7]::c.       credal fact
//	0.4::b0; 0.6::b1.    annotated disjunction
//	#query(a | not b).   query with optional evidence after |
//	% comment
//
// Every other non-empty line is passed through as a rule.
package progfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
)

// Resolver interns atom names; the solver backend's symbol table
// satisfies it.
type Resolver func(name string) program.Symbol

// Parse builds a Program from source text.
func Parse(text string, resolve Resolver) (*program.Program, error) {
	p := &program.Program{}
	var rules []string

	for ln, raw := range strings.Split(text, "\n") {
		line := raw
		if i := strings.Index(line, "%"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "#query"):
			q, err := parseQuery(line, resolve)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ln+1, err)
			}
			p.Queries = append(p.Queries, q)
		case strings.Contains(line, "::"):
			if err := parseProbStatement(p, line, resolve); err != nil {
				return nil, fmt.Errorf("line %d: %w", ln+1, err)
			}
		default:
			rules = append(rules, line)
		}
	}
	p.Rules = strings.Join(rules, "\n")
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseProbStatement(p *program.Program, line string, resolve Resolver) error {
	stmt := strings.TrimSuffix(strings.TrimSpace(line), ".")
	heads := strings.Split(stmt, ";")

	type head struct {
		prob      string
		name      string
		learnable bool
	}
	parsed := make([]head, 0, len(heads))
	for _, h := range heads {
		i := strings.Index(h, "::")
		if i < 0 {
			return fmt.Errorf("%w: missing '::' in %q", internalerr.ErrMalformedProgram, h)
		}
		pr := strings.TrimSpace(h[:i])
		name := strings.TrimSpace(h[i+2:])
		learnable := false
		if rest, ok := strings.CutSuffix(pr, "?"); ok {
			learnable = true
			pr = rest
		}
		if name == "" {
			return fmt.Errorf("%w: empty atom in %q", internalerr.ErrMalformedProgram, h)
		}
		parsed = append(parsed, head{prob: pr, name: name, learnable: learnable})
	}

	if len(parsed) == 1 {
		h := parsed[0]
		if strings.HasPrefix(h.prob, "[") {
			l, u, err := parseInterval(h.prob)
			if err != nil {
				return err
			}
			p.CF = append(p.CF, program.CredalFact{L: l, U: u, Name: h.name, Sym: resolve(h.name)})
			return nil
		}
		pr, err := parseProb(h.prob)
		if err != nil {
			return err
		}
		p.PF = append(p.PF, program.ProbFact{P: pr, Name: h.name, Sym: resolve(h.name), Learnable: h.learnable})
		return nil
	}

	ad := program.AnnotatedDisjunction{}
	for _, h := range parsed {
		pr, err := parseProb(h.prob)
		if err != nil {
			return err
		}
		ad.P = append(ad.P, pr)
		ad.Names = append(ad.Names, h.name)
		ad.Syms = append(ad.Syms, resolve(h.name))
		ad.Learnable = ad.Learnable || h.learnable
	}
	p.AD = append(p.AD, ad)
	return nil
}

func parseProb(s string) (float64, error) {
	pr, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad probability %q", internalerr.ErrMalformedProgram, s)
	}
	return pr, nil
}

func parseInterval(s string) (float64, float64, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: bad credal interval %q", internalerr.ErrMalformedProgram, s)
	}
	l, err := parseProb(parts[0])
	if err != nil {
		return 0, 0, err
	}
	u, err := parseProb(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return l, u, nil
}

func parseQuery(line string, resolve Resolver) (program.Query, error) {
	stmt := strings.TrimSuffix(strings.TrimSpace(line), ".")
	open := strings.Index(stmt, "(")
	end := strings.LastIndex(stmt, ")")
	if open < 0 || end < open {
		return program.Query{}, fmt.Errorf("%w: malformed query %q", internalerr.ErrMalformedProgram, line)
	}
	inner := stmt[open+1 : end]

	qPart := inner
	ePart := ""
	if i := strings.Index(inner, "|"); i >= 0 {
		qPart = inner[:i]
		ePart = inner[i+1:]
	}
	q := program.Query{}
	var err error
	if q.Q, err = parseLiterals(qPart, resolve); err != nil {
		return program.Query{}, err
	}
	if strings.TrimSpace(ePart) != "" {
		if q.E, err = parseLiterals(ePart, resolve); err != nil {
			return program.Query{}, err
		}
	}
	return q, nil
}

func parseLiterals(s string, resolve Resolver) ([]program.Literal, error) {
	var lits []program.Literal
	depth := 0
	start := 0
	var parts []string
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	for _, part := range parts {
		lit := strings.TrimSpace(part)
		if lit == "" {
			return nil, fmt.Errorf("%w: empty literal in %q", internalerr.ErrMalformedProgram, s)
		}
		positive := true
		if rest, ok := strings.CutPrefix(lit, "not "); ok {
			positive = false
			lit = strings.TrimSpace(rest)
		}
		lits = append(lits, program.Literal{Name: lit, Sym: resolve(lit), Positive: positive})
	}
	return lits, nil
}
