package detail

import (
	"strconv"
	"strings"

	"github.com/mgrund/gridplace/pkg/errors"
)

// OperatorKind names one detailed improvement operator.
type OperatorKind string

const (
	// OpMatching reassigns independent sets of same-size cells by solving
	// a minimum-cost assignment over their positions.
	OpMatching OperatorKind = "mis"
	// OpGlobalSwap moves or swaps cells toward their optimal net box
	// anywhere in the core.
	OpGlobalSwap OperatorKind = "gs"
	// OpVerticalSwap is a global swap restricted to adjacent rows.
	OpVerticalSwap OperatorKind = "vs"
	// OpReorder permutes small windows of neighboring cells within a row.
	OpReorder OperatorKind = "ro"
	// OpRandom tries seeded random relocations, keeping improvements.
	OpRandom OperatorKind = "default"
)

// Operator is one scripted pass group: an operator kind with its pass
// count, early-exit tolerance, and window size where applicable.
type Operator struct {
	Kind      OperatorKind
	Passes    int
	Tolerance float64 // relative improvement below which passes stop
	Window    int     // reorder window size
}

// Script is an ordered list of operators, executed front to back.
type Script []Operator

// DefaultScript mirrors the stock improvement schedule: matching, global
// swap, vertical swap, and reorder at ten passes each with a 0.5%
// tolerance, then five passes of random moves.
func DefaultScript() Script {
	return Script{
		{Kind: OpMatching, Passes: 10, Tolerance: 0.005},
		{Kind: OpGlobalSwap, Passes: 10, Tolerance: 0.005},
		{Kind: OpVerticalSwap, Passes: 10, Tolerance: 0.005},
		{Kind: OpReorder, Passes: 10, Tolerance: 0.005, Window: 3},
		{Kind: OpRandom, Passes: 5, Tolerance: 0.005},
	}
}

// ParseScript parses the semicolon-separated operator mini-language, e.g.
//
//	mis -p 10 -t 0.005; gs; vs; ro -w 3; default -p 5
//
// Unknown operators or malformed flags yield an INVALID_SCRIPT error. An
// empty string parses to the default script.
func ParseScript(s string) (Script, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultScript(), nil
	}

	var script Script
	for _, stmt := range strings.Split(s, ";") {
		fields := strings.Fields(stmt)
		if len(fields) == 0 {
			continue
		}
		op, err := parseOperator(fields)
		if err != nil {
			return nil, err
		}
		script = append(script, op)
	}
	if len(script) == 0 {
		return DefaultScript(), nil
	}
	return script, nil
}

func parseOperator(fields []string) (Operator, error) {
	op := Operator{Passes: 1, Tolerance: 0.005}
	switch OperatorKind(fields[0]) {
	case OpMatching:
		op.Kind = OpMatching
	case OpGlobalSwap:
		op.Kind = OpGlobalSwap
	case OpVerticalSwap:
		op.Kind = OpVerticalSwap
	case OpReorder:
		op.Kind = OpReorder
		op.Window = 3
	case OpRandom:
		op.Kind = OpRandom
	default:
		return op, errors.New(errors.ErrCodeInvalidScript,
			"unknown operator %q", fields[0])
	}

	for i := 1; i < len(fields); i++ {
		flag := fields[i]
		if i+1 >= len(fields) {
			return op, errors.New(errors.ErrCodeInvalidScript,
				"flag %q of operator %q is missing its value", flag, op.Kind)
		}
		val := fields[i+1]
		i++
		switch flag {
		case "-p":
			p, err := strconv.Atoi(val)
			if err != nil || p <= 0 {
				return op, errors.New(errors.ErrCodeInvalidScript,
					"operator %q: bad pass count %q", op.Kind, val)
			}
			op.Passes = p
		case "-t":
			t, err := strconv.ParseFloat(val, 64)
			if err != nil || t < 0 {
				return op, errors.New(errors.ErrCodeInvalidScript,
					"operator %q: bad tolerance %q", op.Kind, val)
			}
			op.Tolerance = t
		case "-w":
			w, err := strconv.Atoi(val)
			if err != nil || w < 2 {
				return op, errors.New(errors.ErrCodeInvalidScript,
					"operator %q: bad window size %q", op.Kind, val)
			}
			op.Window = w
		default:
			return op, errors.New(errors.ErrCodeInvalidScript,
				"operator %q: unknown flag %q", op.Kind, flag)
		}
	}
	return op, nil
}

// String renders the script back into the mini-language.
func (s Script) String() string {
	var b strings.Builder
	for i, op := range s {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(string(op.Kind))
		b.WriteString(" -p ")
		b.WriteString(strconv.Itoa(op.Passes))
		b.WriteString(" -t ")
		b.WriteString(strconv.FormatFloat(op.Tolerance, 'g', -1, 64))
		if op.Kind == OpReorder {
			b.WriteString(" -w ")
			b.WriteString(strconv.Itoa(op.Window))
		}
	}
	return b.String()
}
