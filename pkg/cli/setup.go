package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiselector/pkg/config"
	"github.com/devicelab-dev/uiselector/pkg/core"
	uia2driver "github.com/devicelab-dev/uiselector/pkg/driver/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/logger"
	"github.com/devicelab-dev/uiselector/pkg/session"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
	"github.com/devicelab-dev/uiselector/pkg/watcher"
)

// loadConfig reads the config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetConfigDir())
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.IsSet("socket") {
		cfg.Server.Socket = c.String("socket")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("serial") {
		cfg.Server.Serial = c.String("serial")
	}
	if c.IsSet("session-id") {
		cfg.Server.SessionID = c.String("session-id")
	}
	if c.IsSet("wait-timeout") {
		cfg.Selector.WaitTimeout = c.Duration("wait-timeout")
	}
	if c.IsSet("raise") {
		cfg.Selector.RaiseOnNotFound = c.Bool("raise")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// initLogging points the logger at the configured file, or at
// <home>/logs/uiselector.log when none is set.
func initLogging(cfg *config.Config) error {
	path := cfg.Log.File
	if path == "" {
		var err error
		if path, err = config.DefaultLogFile(); err != nil {
			return err
		}
	}
	if err := logger.Init(path); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if cfg.Log.Level != "" {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			return err
		}
	}
	return nil
}

// withSession opens a session (offline when --source is set), runs fn and
// closes everything afterwards.
func withSession(c *cli.Context, fn func(ctx context.Context, s *session.Session) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer logger.Close()

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var s *session.Session
	if source := c.String("source"); source != "" {
		backend, err := loadOffline(source)
		if err != nil {
			return err
		}
		s = session.New(backend, cfg)
		logger.Info("Offline session %s over %s", s.ID(), source)
	} else {
		s, err = session.Connect(ctx, cfg)
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("close session: %v", err)
		}
	}()

	return fn(ctx, s)
}

// readQuery decodes a JSON or YAML query argument; "@path" reads the query
// from a file.
func readQuery(arg string) (map[string]interface{}, error) {
	data := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		var err error
		data, err = os.ReadFile(arg[1:]) //#nosec G304 -- user-provided query file
		if err != nil {
			return nil, fmt.Errorf("read query: %w", err)
		}
	}

	var req map[string]interface{}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	if req == nil {
		req = map[string]interface{}{}
	}
	return req, nil
}

func queryArg(c *cli.Context, pos int, name string) (map[string]interface{}, error) {
	if c.NArg() <= pos {
		return nil, fmt.Errorf("%s is required", name)
	}
	return readQuery(c.Args().Get(pos))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var errOffline = errors.New("not available for an offline hierarchy")

// offlineBackend serves a saved hierarchy. Gestures are rejected.
type offlineBackend struct {
	raw  []byte
	snap *uitree.Snapshot
}

func loadOffline(path string) (*offlineBackend, error) {
	raw, err := os.ReadFile(path) //#nosec G304 -- user-provided hierarchy file
	if err != nil {
		return nil, fmt.Errorf("read hierarchy: %w", err)
	}
	snap, err := uia2driver.ParsePageSource(string(raw))
	if err != nil {
		return nil, err
	}
	return &offlineBackend{raw: raw, snap: snap}, nil
}

func (b *offlineBackend) Fetch(ctx context.Context) (*uitree.Snapshot, error) {
	return b.snap, nil
}

func (b *offlineBackend) Hierarchy(ctx context.Context) ([]byte, error) {
	return b.raw, nil
}

func (b *offlineBackend) Click(ctx context.Context, bounds core.Rect) error {
	return fmt.Errorf("click: %w", errOffline)
}

func (b *offlineBackend) Swipe(ctx context.Context, bounds core.Rect, dir watcher.SwipeDirection, percent float64, speed int) error {
	return fmt.Errorf("swipe: %w", errOffline)
}

func (b *offlineBackend) PressKeyCode(ctx context.Context, code int) error {
	return fmt.Errorf("press key: %w", errOffline)
}

// DeviceInfo derives what it can from the first window root.
func (b *offlineBackend) DeviceInfo(ctx context.Context) (*core.DeviceInfo, error) {
	info := &core.DeviceInfo{NaturalOrientation: true, ProductName: "offline"}
	roots := b.snap.RootAttributes()
	if len(roots) == 0 {
		return info, nil
	}
	bounds := roots[0].VisibleBounds
	info.DisplayWidth = bounds.Width()
	info.DisplayHeight = bounds.Height()
	info.NaturalOrientation = info.DisplayHeight >= info.DisplayWidth
	for _, r := range roots {
		if r.PackageName != "" {
			info.CurrentPackageName = r.PackageName
			break
		}
	}
	return info, nil
}
