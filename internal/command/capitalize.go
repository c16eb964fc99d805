package command

import (
	"fmt"

	"github.com/Swind/go-poblado/handoff"
	"github.com/Swind/go-poblado/processors"
	"github.com/urfave/cli/v2"
)

func CapitalizeCommand() *cli.Command {
	return &cli.Command{
		Name:    "capitalize",
		Aliases: []string{"cap"},
		Usage:   "Upper-case every key and string read from stdin and print them comma separated",

		Flags: commonFlags(),

		Action: CapitalizeAction,
	}
}

func CapitalizeAction(c *cli.Context) error {
	// 1. Load config and flags
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	// 2. Run the processor; output happens on the loop goroutine
	stdout := c.App.Writer
	proc := processors.NewCapitalizer(cfg.ProcessorDelay, func(o handoff.Outcome[[]string]) {
		if o.Failed() {
			return
		}
		for _, s := range o.Result {
			fmt.Fprintf(stdout, "%s,", s)
		}
	})
	outcome, err := runProcessor(c.Context, cfg, logger, "capitalize", proc, c.App.Reader)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 3. Report
	if outcome.Failed() {
		return cli.Exit(outcome.Err.Detail(), 1)
	}
	fmt.Fprint(c.App.ErrWriter, "OK")
	return nil
}
