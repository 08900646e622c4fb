// The compiler-package contains the core of our compiler.
//
// In brief we go through a three-step process:
//
//  1.  Lex and parse the source file, producing an AST whose nodes already
//      carry resolved types - semantic folding happens inside the parser,
//      not as a separate pass.
//
//  2.  Hand that AST, together with the symbol table and label list the
//      parser built, to the code generator.
//
//  3.  Return the generated NASM source, ready to be assembled by the
//      caller's toolchain of choice.
//
package compiler

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/skx/pcc/codegen"
	"github.com/skx/pcc/lexer"
	"github.com/skx/pcc/parser"
)

// Compiler holds our object-state.
type Compiler struct {

	// path is the source file we were constructed with.
	path string

	// debug records whether debugging was requested; SetDebug also
	// raises log to DebugLevel. The generated assembly is the same
	// either way.
	debug bool

	// log is shared with the lexer and the generator. The parser that
	// parser.Parse creates keeps its own warn-level logger.
	log *logrus.Logger
}

//
// Our public API consists of the four functions:
//  New
//  SetDebug
//  SetLogger
//  Compile
//
// The rest of the code is an implementation detail.
//

// New creates a new compiler, given the path to the source file to compile.
func New(path string) *Compiler {
	c := &Compiler{path: path, log: logrus.New()}
	c.log.SetLevel(logrus.WarnLevel)
	return c
}

// SetDebug changes the debug-flag for our output.
func (c *Compiler) SetDebug(val bool) {
	c.debug = val
	if val {
		c.log.SetLevel(logrus.DebugLevel)
	} else {
		c.log.SetLevel(logrus.WarnLevel)
	}
}

// SetLogger installs a caller-supplied logger, overriding the default one
// New creates, so cmd/ can share a single logger across the whole run.
func (c *Compiler) SetLogger(log *logrus.Logger) {
	if log != nil {
		c.log = log
	}
}

// Compile converts the input program into a collection of
// x86-32 NASM assembly.
func (c *Compiler) Compile() (string, error) {

	src, err := os.ReadFile(c.path)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", c.path)
	}

	//
	// Lex and parse the program. Semantic folding (constant folding,
	// array/field lowering, loop desugaring) happens inside the parser,
	// so by the time it returns we already have a typed AST.
	//
	// At this point there might be errors. If so report them,
	// and terminate.
	//
	lex := lexer.New(string(src))
	lex.SetLogger(c.log)

	body, tab, labels, err := parser.Parse(lex)
	if err != nil {
		return "", err
	}

	//
	// Now generate the output assembly.
	//
	gen := codegen.New(tab, labels)
	gen.SetLogger(c.log)

	out, err := gen.Generate(body)
	if err != nil {
		return "", errors.Wrap(err, "generating assembly")
	}

	c.log.WithField("path", c.path).Debug("compiled successfully")
	return out, nil
}
