// Command xyreplay replays recorded channels through the XY synchronizer and
// prints every synchronized pair as a JSON line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xysync/pkg/config"
	"xysync/pkg/curve"
	"xysync/pkg/logging"
	"xysync/pkg/mathchan"
	"xysync/pkg/model"
	"xysync/pkg/registry"
	"xysync/pkg/replay"
	"xysync/pkg/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "xyreplay:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) (err error) {
	fs := flag.NewFlagSet("xyreplay", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "path to the YAML config")
	envFile := fs.String("env-file", "", "dotenv file with XYSYNC_* overrides")
	logPath := fs.String("log", "stderr", "log output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := config.NewLoader(*configPath)
	if *envFile != "" {
		loader.WithEnvFiles(*envFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       logging.Level(cfg.Global.LogLevel),
		OutputPaths: []string{*logPath},
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := registry.NewMemoryRegistry(logger)
	views := newPrinter(stdout, logger)
	sess := session.New(ctx, reg, views, logger)
	defer func() { err = multierr.Append(err, sess.Close()) }()

	targets, err := build(cfg, sess)
	if err != nil {
		return err
	}

	r := replay.NewReplayer(ctx, reg, cfg.Global.ReplaySpeed, logger)
	if err := r.Start(targets); err != nil {
		return err
	}
	logger.Info("replay started", zap.Int("sources", len(targets)), zap.Float64("speed", cfg.Global.ReplaySpeed))
	err = r.Wait()

	// derived channels are fed during delivery, so every level of
	// derivation needs one more pass
	for i := 0; i <= len(cfg.MathChannels); i++ {
		sess.Hub().Flush()
	}
	views.summarize(logger)
	return err
}

// build creates the configured channels, derived channels and plots, and
// returns the sources to replay.
func build(cfg *config.Config, sess *session.Session) ([]replay.Target, error) {
	var targets []replay.Target
	for _, cc := range cfg.Channels {
		ch := cc.Channel()
		if _, err := sess.AddChannel(ch); err != nil {
			return nil, err
		}
		if cc.Source != "" {
			targets = append(targets, replay.Target{Channel: ch.ID(), Path: cc.Source})
		}
	}
	for _, mc := range cfg.MathChannels {
		op, err := mathchan.ParseOp(mc.Op)
		if err != nil {
			return nil, err
		}
		if _, err := sess.AddMathChannel(mc.Channel(), op, mc.A, mc.B); err != nil {
			return nil, fmt.Errorf("math channel %s: %w", mc.Name, err)
		}
	}
	for _, p := range cfg.XYPlots {
		if _, err := sess.AddXYPlot(p.X, p.Y); err != nil {
			return nil, fmt.Errorf("xy plot %s/%s: %w", p.X, p.Y, err)
		}
	}
	return targets, nil
}

type line struct {
	Plot string `json:"plot"`
	model.Pair
}

// printer is a session.ViewFactory whose views keep a curve and echo every
// pair to w.
type printer struct {
	curves curve.Factory
	logger *zap.Logger

	mu     sync.Mutex
	enc    *json.Encoder
	failed bool
}

func newPrinter(w io.Writer, logger *zap.Logger) *printer {
	return &printer{enc: json.NewEncoder(w), logger: logger}
}

func (p *printer) NewXYView(x, y model.Channel) (session.View, error) {
	v, err := p.curves.NewXYView(x, y)
	if err != nil {
		return nil, err
	}
	return &printedView{c: v.(*curve.Curve), p: p}, nil
}

func (p *printer) ReleaseXYView(v session.View) {
	if pv, ok := v.(*printedView); ok {
		p.curves.ReleaseXYView(pv.c)
	}
}

// write logs only the first failed write.
func (p *printer) write(l line) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(l); err != nil && !p.failed {
		p.failed = true
		p.logger.Warn("writing pair", zap.String("plot", l.Plot), zap.Error(err))
	}
}

func (p *printer) summarize(logger *zap.Logger) {
	for _, c := range p.curves.Curves() {
		fields := []zap.Field{zap.String("curve", c.Name()), zap.Int("points", c.Len())}
		if b, ok := c.Bounds(); ok {
			fields = append(fields,
				zap.Float64("min_x", b.MinX), zap.Float64("max_x", b.MaxX),
				zap.Float64("min_y", b.MinY), zap.Float64("max_y", b.MaxY))
		}
		logger.Info("curve summary", fields...)
	}
}

type printedView struct {
	c *curve.Curve
	p *printer
}

func (v *printedView) OnPair(pair model.Pair) {
	v.c.OnPair(pair)
	v.p.write(line{Plot: v.c.Name(), Pair: pair})
}
