package command

import (
	"github.com/urfave/cli/v2"
)

const (
	flagConfig        = "config"
	flagChunkSize     = "chunk-size"
	flagChunkInterval = "chunk-interval"
	flagDelay         = "delay"
	flagLogLevel      = "log-level"
	flagLogFormat     = "log-format"
	flagMetricsAddr   = "metrics-addr"
	flagFile          = "file"
)

// App returns the poblado command line application.
func App() *cli.App {
	return &cli.App{
		Name:  "poblado",
		Usage: "Process JSON from stdin on a worker while the event loop stays responsive",
		Commands: []*cli.Command{
			CapitalizeCommand(),
			DumpCommand(),
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "YAML config file path",
			EnvVars: []string{"POBLADO_CONFIG"},
		},
		&cli.IntFlag{
			Name:    flagChunkSize,
			Aliases: []string{"s"},
			Usage:   "Bytes read from the input per chunk",
		},
		&cli.DurationFlag{
			Name:  flagChunkInterval,
			Usage: "Pause between chunk reads",
		},
		&cli.DurationFlag{
			Name:    flagDelay,
			Aliases: []string{"d"},
			Usage:   "Simulated processing time per item",
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "Log level (trace, debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  flagLogFormat,
			Usage: "Log format (text, json)",
		},
		&cli.StringFlag{
			Name:  flagMetricsAddr,
			Usage: "Serve Prometheus metrics on this address, e.g. :2112",
		},
	}
}
