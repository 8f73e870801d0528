// Package cli provides the command-line interface for uiselector.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiselector/pkg/core"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: uiselector.yaml in $UISELECTOR_HOME)",
		EnvVars: []string{"UISELECTOR_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "socket",
		Usage:   "UIAutomator2 server unix socket",
		EnvVars: []string{"UISELECTOR_SOCKET"},
	},
	&cli.IntFlag{
		Name:    "port",
		Usage:   "UIAutomator2 server forwarded TCP port",
		EnvVars: []string{"UISELECTOR_PORT"},
	},
	&cli.StringFlag{
		Name:    "serial",
		Usage:   "Forward to the server on this device over adb (\"auto\" for the first device)",
		EnvVars: []string{"ANDROID_SERIAL"},
	},
	&cli.StringFlag{
		Name:    "session-id",
		Usage:   "Attach to an existing UIAutomator2 session instead of creating one",
		EnvVars: []string{"UISELECTOR_SESSION_ID"},
	},
	&cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Resolve against a saved hierarchy XML file instead of a device",
		EnvVars: []string{"UISELECTOR_SOURCE"},
	},
	&cli.DurationFlag{
		Name:  "wait-timeout",
		Usage: "How long a query waits for its first match",
	},
	&cli.BoolFlag{
		Name:    "raise",
		Usage:   "Fail when a query matches nothing",
		EnvVars: []string{"UISELECTOR_RAISE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write logs to this file (default <home>/logs/uiselector.log)",
		EnvVars: []string{"UISELECTOR_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"UISELECTOR_VERBOSE"},
	},
}

// Commands lists every subcommand.
var Commands = []*cli.Command{
	findCommand,
	findAllCommand,
	existsCommand,
	waitCommand,
	waitGoneCommand,
	hasChildCommand,
	childrenCommand,
	clickCommand,
	keyCommand,
	dumpCommand,
	deviceInfoCommand,
	watchCommand,
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "uiselector",
		Usage:   "Resolve UI element queries against an Android device",
		Version: Version,
		Description: `uiselector resolves declarative element queries against the live
accessibility tree of an Android device running a UIAutomator2 server,
or against a saved hierarchy dump.

Queries are JSON or YAML objects, or @file to read one from a file.

Examples:
  uiselector find '{"text": "Login"}'
  uiselector --source dump.xml find-all '{"clazz": ".Button"}'
  uiselector --serial auto device-info
  uiselector click '{"res": "com.app:id/ok", "below": {"text": "Terms"}}'
  uiselector watch watchers.yaml --duration 5m`,
		Flags:    GlobalFlags,
		Commands: Commands,
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		os.Exit(1)
	}
}

// describeError prefixes engine errors with their machine-readable code.
func describeError(err error) string {
	code := core.ToExecutionError(err).Code
	if code == "" || code == "internal" {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %s", code, err.Error())
}
