package main

import (
	"context"
	"os"

	"golang.org/x/term"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irgraph/config"
	"github.com/slowlang/irgraph/format"
	"github.com/slowlang/irgraph/pipeline"
)

func main() {
	graphCmd := &cli.Command{
		Name:        "graph",
		Description: "print IR graph as text",
		Action:      graphAct,
		Args:        cli.Args{},
	}

	dotCmd := &cli.Command{
		Name:        "dot",
		Description: "print IR graph in graphviz format",
		Action:      dotAct,
		Args:        cli.Args{},
	}

	exportCmd := &cli.Command{
		Name:        "export",
		Description: "write IR graph view as msgpack for an external renderer",
		Action:      exportAct,
		Args:        cli.Args{},
	}

	asmCmd := &cli.Command{
		Name:        "asm",
		Description: "print disassembled flow graph in graphviz format",
		Action:      asmAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "irgraph",
		Description: "irgraph builds and simplifies IR graphs of assembly listings",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("config", "", "config file (toml)"),
			cli.NewFlag("simplify,s", false, "simplify graph"),
			cli.NewFlag("entry,e", "", "entry symbol or address"),
			cli.NewFlag("short-labels", false, "name unnamed labels loc_ADDR"),
			cli.NewFlag("color", "", "colorize output: auto, always or never"),
			cli.NewFlag("jobs,j", 0, "parallel normalization jobs"),
			cli.NewFlag("verbose-dir", "", "write asm_flow.dot and graph.dot there"),
			cli.NewFlag("verbosity,v", "", "log verbosity topics"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			graphCmd,
			dotCmd,
			exportCmd,
			asmCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func graphAct(c *cli.Command) (err error) {
	return each(c, func(res *pipeline.Result, cfg config.Config) error {
		return format.WriteText(os.Stdout, res.View(pipeline.Namer(cfg)), colored(cfg))
	})
}

func dotAct(c *cli.Command) (err error) {
	return each(c, func(res *pipeline.Result, cfg config.Config) error {
		return format.WriteDot(os.Stdout, res.View(pipeline.Namer(cfg)))
	})
}

func exportAct(c *cli.Command) (err error) {
	return each(c, func(res *pipeline.Result, cfg config.Config) error {
		return format.WriteMsgpack(os.Stdout, res.View(pipeline.Namer(cfg)))
	})
}

func asmAct(c *cli.Command) (err error) {
	return each(c, func(res *pipeline.Result, cfg config.Config) error {
		return format.WriteDot(os.Stdout, res.AsmView(pipeline.Namer(cfg)))
	})
}

func each(c *cli.Command, f func(res *pipeline.Result, cfg config.Config) error) error {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := loadConfig(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	if len(c.Args) == 0 {
		return errors.New("listing file expected")
	}

	for _, a := range c.Args {
		res, err := pipeline.BuildFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "build %v", a)
		}

		for _, e := range res.Untranslatable {
			tlog.Printw("untranslatable", "file", a, "err", e)
		}

		err = f(res, cfg)
		if err != nil {
			return errors.Wrap(err, "output %v", a)
		}
	}

	return nil
}

func loadConfig(c *cli.Command) (cfg config.Config, err error) {
	cfg = config.Default()

	if p := c.String("config"); p != "" {
		cfg, err = config.Load(p)
		if err != nil {
			return cfg, err
		}
	}

	cfg.Simplify = cfg.Simplify || c.Bool("simplify")

	if c.Bool("short-labels") {
		cfg.Labels = config.LabelsShort
	}

	if v := c.String("entry"); v != "" {
		cfg.Entry = v
	}

	if v := c.String("color"); v != "" {
		cfg.Color = v
	}

	if v := c.Int("jobs"); v != 0 {
		cfg.Jobs = v
	}

	if v := c.String("verbose-dir"); v != "" {
		cfg.VerboseDir = v
	}

	return cfg, cfg.Validate()
}

func colored(cfg config.Config) bool {
	switch cfg.Color {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}

	return term.IsTerminal(int(os.Stdout.Fd()))
}
