package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/isis-master/internal/canned"
	cfgpkg "github.com/taoyao-code/isis-master/internal/config"
	"github.com/taoyao-code/isis-master/internal/console"
	"github.com/taoyao-code/isis-master/internal/logging"
	"github.com/taoyao-code/isis-master/internal/player"
	"github.com/taoyao-code/isis-master/internal/transport"
)

type playOptions struct {
	device   string
	baud     int
	out      string
	tick     time.Duration
	waitMode string
	pace     int
	logLevel string
}

func playCmd() *cobra.Command {
	var o playOptions

	cmd := &cobra.Command{
		Use:   "play FILE.PKT",
		Short: "Play a canned packet file once",
		Long: `Play a canned packet file to a serial device, or write the framed
packets to a file or stdout when no device is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPlay(ctx, args[0], o, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.device, "device", "d", "", "serial device (e.g. /dev/ttyUSB0)")
	f.IntVarP(&o.baud, "baud", "b", 9600, "serial baud rate")
	f.StringVarP(&o.out, "out", "o", "-", "output file for framed packets when no device is given")
	f.DurationVar(&o.tick, "tick", 10*time.Millisecond, "duration of one tick")
	f.StringVar(&o.waitMode, "wait-mode", "absolute", "absolute | relative")
	f.IntVar(&o.pace, "bytes-per-sec", 0, "limit output rate (0 = unlimited)")
	f.StringVar(&o.logLevel, "log-level", "info", "debug | info | warn | error")
	return cmd
}

func runPlay(ctx context.Context, path string, o playOptions, stderr io.Writer) error {
	logger, err := logging.NewLogger(cfgpkg.LoggingConfig{Level: o.logLevel, Format: "console"}, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mode, err := player.ParseWaitMode(o.waitMode)
	if err != nil {
		return err
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	var out transport.Transport
	switch {
	case o.device != "":
		s, err := transport.DialSerial(transport.SerialConfig{Device: o.device, Baud: o.baud}, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		out = s
	case o.out == "-":
		out = transport.NewWriter(os.Stdout)
	default:
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		out = transport.NewWriter(f)
	}
	out = transport.NewPaced(out, o.pace, 0)

	opts := player.DefaultOptions()
	opts.Tick = o.tick
	opts.WaitMode = mode
	p := player.New(out, console.NewLogger(console.NewContext(0), logger), nil, opts, logger)
	if err := p.Start(canned.NewReader(in)); err != nil {
		return err
	}

	interval := o.tick / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for p.Step(ctx) != player.StateDone {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-ticker.C:
		}
	}

	st := p.Status()
	logger.Info("playback finished",
		zap.String("file", path),
		zap.Int("emitted", st.Emitted),
		zap.Int("bad_records", st.BadRecords),
		zap.Int("send_errors", st.SendErrors))
	if err := p.Err(); err != nil && !errors.Is(err, player.ErrStopped) {
		return fmt.Errorf("play %s: %w", path, err)
	}
	return nil
}
