package internal

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/voidbert/PL/diagnostic"
	"github.com/voidbert/PL/ewvm"
)

type Options struct {
	// Path names the source in diagnostics.
	Path string
	// Optimize runs the peephole optimizer on the generated program.
	Optimize bool
	// Comments annotates declarations in the generated program.
	Comments bool
	// Sink receives every diagnostic. May be nil.
	Sink diagnostic.Sink
	// Logger traces the compilation stages. Nil discards the trace.
	Logger *log.Logger
}

// Compile runs the whole pipeline over source. Errors and warnings go to options.Sink; when
// any error was reported no program is returned and the error wraps ErrLexical or
// ErrCompilation.
func Compile(source []byte, options Options) (program ewvm.Program, err error) {
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("path", options.Path)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		internal, ok := r.(*InternalError)
		if !ok {
			panic(r)
		}
		logger.Error("compilation failed", "err", internal)
		program, err = nil, internal
	}()

	logger.Debug("start tokenizer")
	tokenizer := &Tokenizer{}
	tokens, lexicalErrors := tokenizer.Tokenize(source)
	if len(lexicalErrors) > 0 {
		for _, e := range lexicalErrors {
			report(options, source, e.Span, e.Msg)
		}
		return nil, fmt.Errorf("%s: %d %w", options.Path, len(lexicalErrors), ErrLexical)
	}
	logger.Debug("tokens", "count", len(tokens))

	logger.Debug("start parser")
	collector := diagnostic.NewCollector(options.Sink)
	parser := NewParser(options.Path, source, tokens, collector)
	ast := parser.Parse()
	if parser.HasErrors() || ast == nil {
		return nil, fmt.Errorf("%s: %d %w", options.Path, collector.ErrorCount(), ErrCompilation)
	}
	if warnings := collector.WarningCount(); warnings > 0 {
		logger.Debug("parser finished with warnings", "warnings", warnings)
	}

	logger.Debug("start code generator")
	program = NewCodeGenerator(options.Comments).Generate(ast)
	if options.Optimize {
		logger.Debug("start peephole optimizer")
		before := len(program)
		program = ewvm.Optimize(program)
		logger.Debug("optimized", "before", before, "after", len(program))
	}
	return program, nil
}

func report(options Options, source []byte, span Span, msg string) {
	if options.Sink == nil {
		return
	}
	options.Sink.Report(diagnostic.Diagnostic{
		Path:    options.Path,
		Source:  string(source),
		Message: msg,
		Line:    span.Line,
		Offset:  span.Start,
		Length:  span.Length(),
	})
}
