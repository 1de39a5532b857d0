// Command exprctl is a minimal line-oriented REPL for the expression
// engine. It reads lines from stdin: a labeled line ("name: expr" or
// "name(arg1, arg2): expr") defines a variable, a bare expression line
// evaluates it immediately against a scratch zero-arity block, and
// ":cycle" / ":redef" print diagnostics for the two semantic error kinds
// a Define can fail with.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/db47h/exprcore"
	"github.com/db47h/exprcore/internal/parser"
	"github.com/fatih/color"
)

func main() {
	ns := exprcore.NewNamespace(exprcore.EvalOnParse(true))
	scanner := bufio.NewScanner(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	errOut := color.New(color.FgRed)
	defer out.Flush()

	for scanner.Scan() {
		line := scanner.Text()
		if err := handle(ns, out, line); err != nil {
			errOut.Fprintf(out, "ERR %s\n", err)
		}
		out.Flush()
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handle(ns *exprcore.Namespace, out *bufio.Writer, line string) error {
	switch strings.TrimSpace(line) {
	case "":
		return nil
	case ":cycle":
		ns.FormatCycle(out)
		fmt.Fprintln(out)
		return nil
	case ":redef":
		ns.FormatRedef(out)
		fmt.Fprintln(out)
		return nil
	}

	if _, _, _, hasLabel := parser.ParseLabel(line); hasLabel {
		_, v, err := ns.Define(line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s/%d defined\n", v.Name(), v.Arity())
		return nil
	}

	v, err := ns.Eval(line)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, v.String())
	return nil
}
