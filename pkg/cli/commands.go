package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	uia2driver "github.com/devicelab-dev/uiselector/pkg/driver/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/session"
)

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Resolve a query to one element and print its info",
	ArgsUsage: "QUERY",
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			info, err := s.Executor().Info(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, info)
		})
	},
}

var findAllCommand = &cli.Command{
	Name:      "find-all",
	Usage:     "Print info for every element matching a query",
	ArgsUsage: "QUERY",
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			infos, err := s.Executor().InfoAll(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, infos)
		})
	},
}

var existsCommand = &cli.Command{
	Name:      "exists",
	Usage:     "Print whether a query currently matches",
	ArgsUsage: "QUERY",
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			ok, err := s.Executor().Exists(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, ok)
		})
	},
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "timeout",
		Usage: "How long to wait",
		Value: 10 * time.Second,
	}
}

var waitCommand = &cli.Command{
	Name:      "wait",
	Usage:     "Wait until a query matches and print whether it did",
	ArgsUsage: "QUERY",
	Flags:     []cli.Flag{timeoutFlag()},
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			ok, err := s.Executor().WaitForExists(ctx, req, c.Duration("timeout"))
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, ok)
		})
	},
}

var waitGoneCommand = &cli.Command{
	Name:      "wait-gone",
	Usage:     "Wait until a query no longer matches and print whether it went away",
	ArgsUsage: "QUERY",
	Flags:     []cli.Flag{timeoutFlag()},
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			ok, err := s.Executor().WaitUntilGone(ctx, req, c.Duration("timeout"))
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, ok)
		})
	},
}

var hasChildCommand = &cli.Command{
	Name:      "has-child",
	Usage:     "Print whether the element a query resolves to has a matching descendant",
	ArgsUsage: "QUERY CHILD",
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		childReq, err := queryArg(c, 1, "CHILD")
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			ok, err := s.Executor().HasChild(ctx, req, childReq)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, ok)
		})
	},
}

var childrenCommand = &cli.Command{
	Name:      "children",
	Usage:     "Print the direct children of the element a query resolves to",
	ArgsUsage: "QUERY",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "match",
			Usage: "Only children matching this query",
		},
	},
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		var childReq map[string]interface{}
		if c.IsSet("match") {
			if childReq, err = readQuery(c.String("match")); err != nil {
				return err
			}
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			exec := s.Executor()
			if childReq != nil {
				infos, err := exec.FindChildren(ctx, req, childReq)
				if err != nil {
					return err
				}
				return writeJSON(c.App.Writer, infos)
			}
			infos, err := exec.Children(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, infos)
		})
	},
}

var clickCommand = &cli.Command{
	Name:      "click",
	Usage:     "Click the center of the element a query resolves to",
	ArgsUsage: "QUERY",
	Action: func(c *cli.Context) error {
		req, err := queryArg(c, 0, "QUERY")
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			clicked, err := s.Click(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, map[string]bool{"clicked": clicked})
		})
	},
}

var keyCommand = &cli.Command{
	Name:      "key",
	Usage:     "Press a key by name (home, back, enter, ...) or Android key code",
	ArgsUsage: "KEY",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("KEY is required")
		}
		code, err := uia2driver.ResolveKey(c.Args().First())
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			return s.PressKeyCode(ctx, code)
		})
	},
}

var dumpCommand = &cli.Command{
	Name:  "dump",
	Usage: "Print the raw hierarchy XML",
	Action: func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			data, err := s.Hierarchy(ctx)
			if err != nil {
				return err
			}
			_, err = c.App.Writer.Write(data)
			return err
		})
	},
}

var deviceInfoCommand = &cli.Command{
	Name:  "device-info",
	Usage: "Print display and foreground package information",
	Action: func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, s *session.Session) error {
			info, err := s.DeviceInfo(ctx)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, info)
		})
	},
}
