package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/asm"
	"github.com/slowlang/irgraph/config"
	"github.com/slowlang/irgraph/expr"
	"github.com/slowlang/irgraph/format"
	"github.com/slowlang/irgraph/ir"
	"github.com/slowlang/irgraph/lift"
	"github.com/slowlang/irgraph/opt"
	"github.com/slowlang/irgraph/symtab"
)

type (
	Result struct {
		Title string

		Program *asm.Program
		Syms    *symtab.Pool
		Entry   uint64
		Blocks  []asm.Block

		Graph *ir.Graph

		// Untranslatable instructions kept as unknown effects.
		Untranslatable []error

		Stats *opt.Stats
	}
)

const (
	AsmFlowDot = "asm_flow.dot"
	GraphDot   = "graph.dot"
)

func BuildFile(ctx context.Context, name string, cfg config.Config) (*Result, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Build(ctx, name, text, cfg)
}

// Build disassembles the listing from the entry point,
// translates it into an IR graph and normalizes it.
// The graph is simplified if cfg.Simplify is set.
func Build(ctx context.Context, name string, text []byte, cfg config.Config) (res *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "pipeline: build", "name", name, "simplify", cfg.Simplify)
	defer tr.Finish("err", &err)

	res = &Result{Title: format.TitleIR}

	res.Program, err = asm.ParseListing(name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	res.Syms, err = Symbols(res.Program, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "symbols")
	}

	res.Entry, err = ResolveEntry(res.Program, res.Syms, cfg.Entry)
	if err != nil {
		return nil, errors.Wrap(err, "entry")
	}

	d := &asm.Disassembler{Syms: res.Syms}

	res.Blocks, err = d.DisMultiBlock(ctx, res.Program, res.Entry)
	if err != nil {
		return nil, errors.Wrap(err, "disassemble")
	}

	namer := Namer(cfg)

	if cfg.VerboseDir != "" {
		err = writeDot(ctx, filepath.Join(cfg.VerboseDir, AsmFlowDot), format.ExportAsm(res.Blocks, res.Syms, namer))
		if err != nil {
			return nil, err
		}
	}

	exprs := expr.NewPool()
	res.Graph = ir.New(exprs, res.Syms)
	res.Graph.Entries = []symtab.Label{res.Syms.LabelAt(res.Entry)}

	b := ir.NewBuilder(res.Graph, lift.Lifter{})

	err = b.AddBlocks(ctx, res.Blocks)
	if err != nil {
		return nil, errors.Wrap(err, "build graph")
	}

	res.Untranslatable = b.Errs

	simp := expr.Simp{Pool: exprs}

	_, err = opt.Normalize(ctx, res.Graph, simp, cfg.Jobs)
	if err != nil {
		return nil, errors.Wrap(err, "normalize")
	}

	if cfg.VerboseDir != "" {
		err = writeDot(ctx, filepath.Join(cfg.VerboseDir, GraphDot), format.Export(res.Graph, res.Title, namer))
		if err != nil {
			return nil, err
		}
	}

	if !cfg.Simplify {
		return res, nil
	}

	exitLive := make([]expr.Expr, len(cfg.ExitLive))

	for i, r := range cfg.ExitLive {
		if !lift.Regs[r] {
			return nil, errors.New("exit_live: not a register: %v", r)
		}

		exitLive[i] = exprs.Reg(r, lift.Size)
	}

	st, err := opt.Simplify(ctx, res.Graph, opt.Options{
		Simplifier: simp,
		ExitLive:   exitLive,
		Jobs:       cfg.Jobs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "simplify")
	}

	res.Stats = &st
	res.Title = format.TitleIRSimplified

	return res, nil
}

// Symbols binds listing labels and configured symbols.
func Symbols(p *asm.Program, cfg config.Config) (*symtab.Pool, error) {
	syms := symtab.New()

	for _, l := range p.Labels {
		_, err := syms.Add(l.Name, l.Addr)
		if err != nil {
			return nil, errors.Wrap(err, "label %v", l.Name)
		}
	}

	list, err := cfg.SymbolList()
	if err != nil {
		return nil, err
	}

	for _, s := range list {
		_, err = syms.Add(s.Name, s.Addr)
		if err != nil {
			return nil, errors.Wrap(err, "symbol %v", s.Name)
		}
	}

	return syms, nil
}

// ResolveEntry finds the address to start disassembly from.
// entry is a symbol name or an address, the listing .entry
// directive and then the first instruction are used if it's empty.
func ResolveEntry(p *asm.Program, syms *symtab.Pool, entry string) (uint64, error) {
	if entry == "" {
		entry = p.Entry
	}

	if entry == "" {
		if len(p.Instrs) == 0 {
			return 0, errors.New("no instructions")
		}

		return p.Instrs[0].Addr, nil
	}

	if l, ok := syms.ByName(entry); ok {
		s := syms.Symbol(l)
		if !s.Resolved {
			return 0, errors.New("%v: no address", entry)
		}

		return s.Offset, nil
	}

	addr, err := strconv.ParseUint(entry, 0, 64)
	if err != nil {
		return 0, errors.New("%v: neither a symbol nor an address", entry)
	}

	return addr, nil
}

func Namer(cfg config.Config) format.Namer {
	if cfg.Labels == config.LabelsShort {
		return format.ShortNamer
	}

	return format.LongNamer
}

func (r *Result) View(n format.Namer) format.View {
	return format.Export(r.Graph, r.Title, n)
}

func (r *Result) AsmView(n format.Namer) format.View {
	return format.ExportAsm(r.Blocks, r.Syms, n)
}

func writeDot(ctx context.Context, path string, v format.View) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create")
	}

	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close %v", path)
		}
	}()

	err = format.WriteDot(f, v)
	if err != nil {
		return errors.Wrap(err, "%v", path)
	}

	tlog.SpanFromContext(ctx).Printw("dot written", "path", path, "nodes", len(v.Nodes), "edges", len(v.Edges))

	return nil
}
