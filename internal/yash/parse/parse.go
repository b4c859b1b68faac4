// Package parse folds a tokenized command line into a job.Job description,
// or fails with a ParseError that the prompt loop reports and discards.
package parse

import (
	"errors"
	"fmt"

	"github.com/tjper/yash/internal/validator"
	"github.com/tjper/yash/internal/yash/job"
)

// ErrSyntax is the sentinel every ParseError wraps.
var ErrSyntax = errors.New("syntax error")

// Parse consumes tokens (as produced by token.Tokenize) into a Job. tokens
// must be non-empty; the caller (the prompt loop) is responsible for
// skipping Parse entirely on empty input.
func Parse(command string, tokens []string) (*job.Job, error) {
	p := &parser{tokens: tokens, first: &job.Process{}}
	p.current = p.first

	if err := p.run(); err != nil {
		return nil, err
	}

	v := validator.New()
	v.Assert(len(p.first.Argv) > 0, "command missing")
	if p.second != nil {
		v.Assert(len(p.second.Argv) > 0, "command missing after |")
	}
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, err)
	}

	return job.New(command, p.background, p.first, p.second), nil
}

type parser struct {
	tokens []string
	pos    int

	first   *job.Process
	second  *job.Process
	current *job.Process

	inSecond   bool
	background bool
}

// run executes a single-pass cursor: one pointer into tokens, one pointer
// to the process spec currently being filled.
func (p *parser) run() error {
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		last := p.pos == len(p.tokens)-1

		switch tok {
		case "<":
			if err := p.consumeRedirect(tok, last, &p.current.InFile); err != nil {
				return err
			}
		case ">":
			if err := p.consumeRedirect(tok, last, &p.current.OutFile); err != nil {
				return err
			}
		case "2>":
			if err := p.consumeRedirect(tok, last, &p.current.ErrFile); err != nil {
				return err
			}
		case "|":
			if len(p.current.Argv) == 0 || last || p.inSecond {
				return syntaxErrorf("'|' requires a command on both sides and at most one pipe")
			}
			p.second = &job.Process{}
			p.current = p.second
			p.inSecond = true
			p.pos++
		case "&":
			if !last {
				return syntaxErrorf("'&' must be the final token")
			}
			p.background = true
			p.pos++
		default:
			p.current.Argv = append(p.current.Argv, tok)
			p.pos++
		}
	}

	return nil
}

// consumeRedirect handles the shared shape of <, >, and 2>: each requires a
// non-empty current argv and a following token to consume as the filename ("last token" is
// an error).
func (p *parser) consumeRedirect(tok string, last bool, target *string) error {
	if len(p.current.Argv) == 0 || last {
		return syntaxErrorf("%q requires a preceding command and a following filename", tok)
	}
	*target = p.tokens[p.pos+1]
	p.pos += 2
	return nil
}

func syntaxErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrSyntax}, args...)...)
}
