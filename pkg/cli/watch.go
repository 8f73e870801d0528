package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	uia2driver "github.com/devicelab-dev/uiselector/pkg/driver/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/logger"
	"github.com/devicelab-dev/uiselector/pkg/session"
	"github.com/devicelab-dev/uiselector/pkg/watcher"
)

// watcherFile is the YAML layout accepted by the watch command.
type watcherFile struct {
	Watchers []watcherSpec `yaml:"watchers"`
}

type watcherSpec struct {
	Name      string                 `yaml:"name"`
	Condition map[string]interface{} `yaml:"condition"`
	Action    map[string]interface{} `yaml:"action"`
	Kind      string                 `yaml:"kind"`
	Keys      []interface{}          `yaml:"keys"`
	Swipe     struct {
		Direction string `yaml:"direction"`
		Percent   int    `yaml:"percent"`
		Speed     int    `yaml:"speed"`
	} `yaml:"swipe"`
}

func (w watcherSpec) toWatcher() (watcher.Watcher, error) {
	out := watcher.Watcher{
		Name:      w.Name,
		Condition: w.Condition,
		Action:    w.Action,
		Kind:      watcher.ActionKind(w.Kind),
		Swipe: watcher.Swipe{
			Direction: watcher.SwipeDirection(w.Swipe.Direction),
			Percent:   w.Swipe.Percent,
			Speed:     w.Swipe.Speed,
		},
	}
	for _, k := range w.Keys {
		code, err := uia2driver.ResolveKey(fmt.Sprint(k))
		if err != nil {
			return out, fmt.Errorf("watcher %s: %w", w.Name, err)
		}
		out.KeyCodes = append(out.KeyCodes, code)
	}
	return out, nil
}

func loadWatchers(path string) ([]watcher.Watcher, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided watcher file
	if err != nil {
		return nil, fmt.Errorf("read watchers: %w", err)
	}
	var file watcherFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse watchers: %w", err)
	}
	if len(file.Watchers) == 0 {
		return nil, fmt.Errorf("no watchers in %s", path)
	}

	out := make([]watcher.Watcher, 0, len(file.Watchers))
	for _, spec := range file.Watchers {
		w, err := spec.toWatcher()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

type watchResult struct {
	Stats     watcher.Stats `json:"stats"`
	Triggered []string      `json:"triggered"`
}

var watchCommand = &cli.Command{
	Name:      "watch",
	Usage:     "Run watchers from a YAML file until interrupted",
	ArgsUsage: "FILE",
	Description: `Each watcher has a name, a condition query and an action:

  watchers:
    - name: permission
      condition: {text: Allow, clazz: .Button}
    - name: rate-dialog
      condition: {textContains: Rate}
      kind: pressKeys
      keys: [back]
    - name: banner
      condition: {res: "com.app:id/banner"}
      kind: swipe
      swipe: {direction: up, percent: 80, speed: 3000}`,
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "Stop after this long (0 runs until interrupted)",
		},
		&cli.BoolFlag{
			Name:  "once",
			Usage: "Run a single pass and exit",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("FILE is required")
		}
		watchers, err := loadWatchers(c.Args().First())
		if err != nil {
			return err
		}

		return withSession(c, func(ctx context.Context, s *session.Session) error {
			eng := s.Watchers()
			for _, w := range watchers {
				if err := eng.Register(w); err != nil {
					return err
				}
			}

			if c.Bool("once") {
				eng.RunAll(ctx)
			} else {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				if d := c.Duration("duration"); d > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, d)
					defer cancel()
				}

				start := time.Now()
				if err := s.StartWatchers(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				s.StopWatchers()
				logger.Info("Watchers stopped after %s", time.Since(start).Round(time.Millisecond))
			}

			result := watchResult{Stats: eng.Stats(), Triggered: []string{}}
			for _, name := range eng.Names() {
				if eng.Triggered(name) {
					result.Triggered = append(result.Triggered, name)
				}
			}
			return writeJSON(c.App.Writer, result)
		})
	},
}
