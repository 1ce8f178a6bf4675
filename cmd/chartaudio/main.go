// SPDX-License-Identifier: EPL-2.0

// Command chartaudio plays hit sounds and a backing track through the
// playback engine, or renders a tempo changed copy of a file to WAV.
//
//	chartaudio -hit assets/hit.wav -count 8 -music song.ogg -offset 30 -speed 1.25
//	chartaudio -render out.wav -speed 0.75 song.mp3
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ik5/chartaudio"
	"github.com/ik5/chartaudio/formats"
	"github.com/ik5/chartaudio/formats/wav"
)

type options struct {
	hit      string
	count    int
	interval time.Duration
	music    string
	offset   float64
	speed    float64
	length   time.Duration

	render string
	rate   int

	env     string
	verbose bool
}

func main() {
	var o options
	flag.StringVar(&o.hit, "hit", "", "sound effect to trigger")
	flag.IntVar(&o.count, "count", 4, "number of effect triggers")
	flag.DurationVar(&o.interval, "interval", 250*time.Millisecond, "time between triggers")
	flag.StringVar(&o.music, "music", "", "backing track to play")
	flag.Float64Var(&o.offset, "offset", 0, "music start position in seconds")
	flag.Float64Var(&o.speed, "speed", 1, "music speed ratio")
	flag.DurationVar(&o.length, "for", 10*time.Second, "how long to play before exiting")
	flag.StringVar(&o.render, "render", "", "render the input file to this WAV path instead of playing")
	flag.IntVar(&o.rate, "rate", 44100, "sample rate of the rendered file")
	flag.StringVar(&o.env, "env", ".env", "optional env file with CHARTAUDIO_* settings")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var err error
	if o.render != "" {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: chartaudio -render <output.wav> [-speed r] [-rate hz] <input.{wav|mp3|ogg}>")
			os.Exit(2)
		}
		err = render(flag.Arg(0), o)
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = play(ctx, logger, o)
		stop()
	}

	if err != nil {
		logger.Error("chartaudio failed", "err", err)
		os.Exit(1)
	}
}

func render(in string, o options) error {
	src, err := formats.Default().Open(in)
	if err != nil {
		return fmt.Errorf("opening %s: %w", in, err)
	}
	defer src.Close()

	cfg, err := chartaudio.LoadConfig(o.env)
	if err != nil {
		return err
	}

	pcm, err := chartaudio.RenderMono16(src, o.rate, o.speed, cfg.Stretch)
	if err != nil {
		return err
	}

	out, err := os.Create(o.render)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	if err := wav.WriteWAV16(out, o.rate, pcm); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", o.render, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}

	slog.Info("rendered", "path", o.render, "seconds", float64(len(pcm))/float64(o.rate))
	return nil
}

func play(ctx context.Context, logger *slog.Logger, o options) error {
	if o.hit == "" && o.music == "" {
		return errors.New("nothing to play, pass -hit and/or -music")
	}

	cfg, err := chartaudio.LoadConfig(o.env)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	engine, err := chartaudio.Initialize(cfg)
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	if !engine.IsSupported() {
		return chartaudio.ErrNotSupported
	}

	id, failures := engine.Subscribe()
	defer engine.Unsubscribe(id)
	go func() {
		for ev := range failures {
			logger.Warn("playback failure", "op", ev.Op, "path", ev.Path, "err", ev.Err)
		}
	}()

	if o.hit != "" {
		seconds, err := engine.GetDuration(o.hit)
		if err != nil {
			return err
		}
		logger.Info("effect registered", "path", o.hit, "seconds", seconds)
	}
	if o.music != "" {
		if err := engine.PlayMusic(o.music, o.offset, o.speed); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.length)
	defer cancel()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	played := 0
	for {
		if o.hit != "" && played < o.count {
			if err := engine.Play(o.hit, 0); err != nil {
				return err
			}
			played++
		}

		select {
		case <-ctx.Done():
			if stats, ok := engine.Stats(o.hit); ok {
				logger.Info("effect pool", "handles", stats.Handles, "free", stats.Free, "playing", stats.Playing)
			}
			return engine.StopAll()
		case <-ticker.C:
		}
	}
}
