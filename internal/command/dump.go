package command

import (
	"fmt"
	"io"
	"os"

	"github.com/Swind/go-poblado/handoff"
	"github.com/Swind/go-poblado/processors"
	"github.com/urfave/cli/v2"
)

func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Extract the keys of a JSON document and log them upper-cased",
		ArgsUsage: "[file]",

		Flags: append(commonFlags(), &cli.StringFlag{
			Name:    flagFile,
			Aliases: []string{"f"},
			Usage:   "JSON file to read instead of stdin",
		}),

		Action: DumpAction,
	}
}

func DumpAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	var input io.Reader = c.App.Reader
	file := c.String(flagFile)
	if file == "" {
		file = c.Args().First()
	}
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		defer f.Close()
		input = f
		logger.WithField("file", file).Info("[main] processing")
	}

	proc := processors.NewKeyExtractor(cfg.ProcessorDelay, func(o handoff.Outcome[[]string]) {
		if o.Failed() {
			logger.WithField("offset", o.Err.Offset).Error("[collector] found error")
			return
		}
		for _, key := range o.Result {
			logger.WithField("key", key).Info("[collector] printing key")
		}
	})

	outcome, err := runProcessor(c.Context, cfg, logger, "dump", proc, input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	if outcome.Failed() {
		return cli.Exit(outcome.Err.Detail(), 1)
	}
	return nil
}
