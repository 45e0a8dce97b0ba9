package main

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	defaultPort = 80
	defaultPath = "/"
)

// flags defines the CLI flags for wsclient. Each one except --pretty-log
// can also be set using an environment variable or the application's TOML
// configuration file, in that order of precedence.
func flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "WebSocket server host",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCLIENT_HOST"),
				toml.TOML("wsclient.host", configFilePath),
			),
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "WebSocket server port",
			Value: defaultPort,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCLIENT_PORT"),
				toml.TOML("wsclient.port", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "WebSocket request path",
			Value: defaultPath,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCLIENT_PATH"),
				toml.TOML("wsclient.path", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "send",
			Usage: "text message to send once connected",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSCLIENT_SEND"),
				toml.TOML("wsclient.send", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
	}
}
