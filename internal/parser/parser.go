// Package parser implements the Expression Parser (spec.md §4.F): a
// tokenizer and driver that feeds recognized tokens through a yard.Yard
// into a target bytecode.Block.
package parser

import (
	"github.com/db47h/exprcore/internal/bytecode"
	"github.com/db47h/exprcore/internal/errcode"
	"github.com/db47h/exprcore/internal/registry"
	"github.com/db47h/exprcore/internal/scalar"
	"github.com/db47h/exprcore/internal/yard"
)

// Resolver is the single namespace operation the parser needs: resolve a
// bare word to the Code Block that implements it, forward-declaring an
// empty, unimplemented variable if the name has not been seen before.
// Implemented by the root package's Namespace so this package never has
// to import it back (which would be a cycle).
type Resolver interface {
	Put(name string) *bytecode.Block
}

type parser struct {
	src      string
	pos      int
	depth    int
	argNames []string
	resolver Resolver
	yard     *yard.Yard
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

func isNewline(c byte) bool { return c == '\n' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentCont(c byte) bool { return isIdentStart(c) || isDigit(c) }

// skipWS skips blanks unconditionally and, while inside parentheses,
// newlines too (spec.md §4.F: "inside parentheses all whitespace; outside,
// only blanks").
func (p *parser) skipWS() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isBlank(c) || (p.depth > 0 && isNewline(c)) {
			p.pos++
			continue
		}
		break
	}
}

func (p *parser) argIndex(word string) (int, bool) {
	for i, a := range p.argNames {
		if a == word {
			return i, true
		}
	}
	return 0, false
}

func (p *parser) word() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentCont(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// resolveWord implements tokenization rule 4: argument name, then builtin
// constant/function, then namespace variable (with a one-token lookahead
// for '(' to disambiguate a call from a value load).
func (p *parser) resolveWord(w string) error {
	if i, ok := p.argIndex(w); ok {
		return p.yard.LoadArg(i)
	}
	if n, ok := registry.LookupNamed(w); ok {
		if n.Arity == 0 {
			v, err := n.Value()
			if err != nil {
				return err
			}
			return p.yard.LoadConst(v)
		}
		return p.yard.FuncCall(n.Callable())
	}
	block := p.resolver.Put(w)
	save := p.pos
	p.skipWS()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		return p.yard.CodeCall(block)
	}
	p.pos = save
	return p.yard.LoadVar(block)
}

// run tokenizes and drives the yard until a terminating condition (EOF, an
// unrecognized character, or an unparenthesized newline) is reached, then
// settles the yard with Clear. It returns the position immediately after
// the consumed expression.
func (p *parser) run() (int, error) {
	for {
		p.skipWS()
		if p.pos >= len(p.src) {
			break
		}
		c := p.src[p.pos]
		if p.depth == 0 && isNewline(c) {
			break
		}

		var err error
		switch c {
		case '(':
			p.pos++
			p.depth++
			err = p.yard.OpenParenth()
		case ')':
			p.pos++
			p.depth--
			err = p.yard.CloseParenth()
		case ',':
			p.pos++
			err = p.yard.PutComma()
		default:
			tree := registry.PrefixOps
			if p.yard.Last() == yard.ClsValue {
				tree = registry.InfixOps
			}
			if op, n, ok := tree.Query(p.src[p.pos:]); ok {
				p.pos += n
				if op.Unary {
					err = p.yard.PutUnary(op)
				} else {
					err = p.yard.PutBinary(op)
				}
			} else if v, n, ok := scalar.ParseNumber(p.src[p.pos:]); ok {
				p.pos += n
				err = p.yard.LoadConst(v)
			} else if isIdentStart(c) {
				err = p.resolveWord(p.word())
			} else {
				// rule 5: unrecognized content, stop tokenizing here.
				goto settle
			}
		}
		if err != nil {
			return p.pos, err
		}
	}
settle:
	if err := p.yard.Clear(); err != nil {
		return p.pos, err
	}
	return p.pos, nil
}

// ParseExpression parses a single bare expression (no label) from src,
// starting at byte offset 0, emitting into a fresh Code Block. argNames
// names the block's positional arguments, in order (nil for a plain
// zero-argument expression). It returns the block, the number of bytes
// consumed, and a PositionedError on failure.
func ParseExpression(src string, argNames []string, resolver Resolver, tryEval bool) (*bytecode.Block, int, *errcode.PositionedError) {
	block := bytecode.NewBlock()
	block.SetArity(len(argNames))
	n, err := ParseInto(block, src, argNames, resolver, tryEval)
	if err != nil {
		return nil, n, err
	}
	return block, n, nil
}

// ParseInto parses a single bare expression from src into target, an
// already-allocated Code Block (target.SetArity(len(argNames)) must
// already have been called by the caller). Reusing a caller-owned block
// rather than always allocating a fresh one is what lets a Namespace
// define a forward-declared name in place: every existing CallCode
// reference to that Variable's block keeps pointing at the same object,
// which now simply has instructions in it.
func ParseInto(target *bytecode.Block, src string, argNames []string, resolver Resolver, tryEval bool) (int, *errcode.PositionedError) {
	p := &parser{src: src, argNames: argNames, resolver: resolver, yard: yard.New(target, tryEval)}
	n, err := p.run()
	if err != nil {
		return n, errcode.At(toCode(err), n)
	}
	if rest := firstNonBlank(src, n); rest < len(src) && !isNewline(src[rest]) {
		return rest, errcode.At(errcode.ExtraContent, rest)
	}
	return n, nil
}

// firstNonBlank returns the offset of the first non-blank byte at or
// after pos.
func firstNonBlank(src string, pos int) int {
	for pos < len(src) && isBlank(src[pos]) {
		pos++
	}
	return pos
}

// toCode unwraps an error returned by the yard into an errcode.Code. Any
// error that is not a bare Code (such as a try-eval failure returned by a
// builtin function) is reported as UnknownInstr.
func toCode(err error) errcode.Code {
	if c, ok := err.(errcode.Code); ok {
		return c
	}
	return errcode.UnknownInstr
}

// Definition is a parsed "name(arg1, arg2, ...): expression" or
// "name: expression" form.
type Definition struct {
	Name     string
	ArgNames []string
	Block    *bytecode.Block
}

// ParseDefinition parses an optional label (identifier, optional
// parenthesized argument-name list, colon) followed by an expression, per
// spec.md §4.G. When no label is present, Name is returned empty and the
// caller is expected to synthesize one (this implementation's Namespace
// uses an anonymous name so every successful parse still yields a
// value-bearing Variable, matching the ABI's `define -> var_ref?` shape).
func ParseDefinition(src string, resolver Resolver, tryEval bool) (Definition, int, *errcode.PositionedError) {
	name, argNames, bodyStart, hasLabel := ParseLabel(src)
	body := src[bodyStart:]
	block, n, err := ParseExpression(body, argNames, resolver, tryEval)
	if err != nil {
		return Definition{}, bodyStart + err.Pos, errcode.At(err.Code, bodyStart+err.Pos)
	}
	if !hasLabel {
		name = ""
	}
	return Definition{Name: name, ArgNames: argNames, Block: block}, bodyStart + n, nil
}

// ParseLabel attempts to match the label grammar at the start of src
// without mutating any parser/yard state: identifier, optional
// "(ident (, ident)*)", then ':'. If the exact pattern doesn't match, the
// whole input is treated as a label-less expression starting at offset 0.
// This is exported so a Namespace can inspect the label (and in
// particular its name) before deciding which Code Block the body should
// be parsed into — see Namespace.Define.
func ParseLabel(src string) (name string, argNames []string, bodyStart int, ok bool) {
	pos := firstNonBlank(src, 0)
	if pos >= len(src) || !isIdentStart(src[pos]) {
		return "", nil, 0, false
	}
	start := pos
	for pos < len(src) && isIdentCont(src[pos]) {
		pos++
	}
	name = src[start:pos]
	pos = firstNonBlank(src, pos)
	if pos < len(src) && src[pos] == ':' {
		return name, nil, pos + 1, true
	}
	if pos >= len(src) || src[pos] != '(' {
		return "", nil, 0, false
	}
	pos++
	for {
		pos = firstNonBlank(src, pos)
		if pos >= len(src) || !isIdentStart(src[pos]) {
			return "", nil, 0, false
		}
		argStart := pos
		for pos < len(src) && isIdentCont(src[pos]) {
			pos++
		}
		argNames = append(argNames, src[argStart:pos])
		pos = firstNonBlank(src, pos)
		if pos >= len(src) {
			return "", nil, 0, false
		}
		if src[pos] == ',' {
			pos++
			continue
		}
		if src[pos] == ')' {
			pos++
			break
		}
		return "", nil, 0, false
	}
	pos = firstNonBlank(src, pos)
	if pos >= len(src) || src[pos] != ':' {
		return "", nil, 0, false
	}
	return name, argNames, pos + 1, true
}
