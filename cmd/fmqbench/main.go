// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command fmqbench measures queue throughput between a writer and readers
// attached through the queue descriptor.
//
// Usage:
//
//	fmqbench [-flavor sync|unsync] [-count N] [-messages N] [-batch N] [-readers N]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"code.hybscloud.com/fmq"
)

// message is the benchmark payload, one cache line.
type message struct {
	Seq     uint64
	Sent    int64
	Payload [6]uint64
}

type config struct {
	flavor   string
	count    int
	messages uint64
	batch    int
	readers  int
	timeout  time.Duration
	verbose  bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.flavor, "flavor", "sync", "queue flavor: sync or unsync")
	flag.IntVar(&cfg.count, "count", 1024, "queue capacity in messages")
	flag.Uint64Var(&cfg.messages, "messages", 1_000_000, "messages to write")
	flag.IntVar(&cfg.batch, "batch", 16, "messages per write and read")
	flag.IntVar(&cfg.readers, "readers", 1, "reader handles (unsync only)")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "blocking call timeout")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	log := newLogger(cfg.verbose)
	if err := run(context.Background(), log, cfg); err != nil {
		log.Error("benchmark failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func run(ctx context.Context, log *slog.Logger, cfg config) error {
	if cfg.batch < 1 || cfg.batch > cfg.count {
		return fmt.Errorf("batch must be in [1, %d]", cfg.count)
	}
	switch cfg.flavor {
	case "sync":
		if cfg.readers != 1 {
			return errors.New("sync queues have exactly one reader")
		}
		return runSynchronized(ctx, log, cfg)
	case "unsync":
		if cfg.readers < 1 {
			return errors.New("need at least one reader")
		}
		return runUnsynchronized(ctx, log, cfg)
	default:
		return fmt.Errorf("unknown flavor %q", cfg.flavor)
	}
}

func runSynchronized(ctx context.Context, log *slog.Logger, cfg config) error {
	w, err := fmq.BuildSynchronized[message](fmq.New(cfg.count).EventFlag().Name("fmqbench").Logger(log))
	if err != nil {
		return err
	}
	defer w.Close()
	r, err := fmq.BuildSynchronized[message](fmq.Attach(w.Descriptor()).Logger(log))
	if err != nil {
		return err
	}
	defer r.Close()

	log.Info("starting", "flavor", "sync", "count", cfg.count, "messages", cfg.messages, "batch", cfg.batch)
	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()

	g.Go(func() error {
		return write(ctx, cfg, func(batch []message) error {
			return w.WriteBlocking(batch, cfg.timeout)
		})
	})

	var latency atomix.Int64
	g.Go(func() error {
		buf := make([]message, cfg.batch)
		for next := uint64(0); next < cfg.messages; {
			n := min(uint64(cfg.batch), cfg.messages-next)
			if err := r.ReadBlocking(buf[:n], cfg.timeout); err != nil {
				return fmt.Errorf("read at %d: %w", next, err)
			}
			for i, m := range buf[:n] {
				if m.Seq != next+uint64(i) {
					return fmt.Errorf("message %d: got seq %d", next+uint64(i), m.Seq)
				}
			}
			latency.Add(time.Now().UnixNano() - buf[n-1].Sent)
			next += n
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	report(log, cfg, time.Since(start))
	batches := (cfg.messages + uint64(cfg.batch) - 1) / uint64(cfg.batch)
	log.Info("latency", "mean", time.Duration(latency.Load()/int64(batches)))
	return nil
}

func runUnsynchronized(ctx context.Context, log *slog.Logger, cfg config) error {
	w, err := fmq.BuildUnsynchronized[message](fmq.New(cfg.count).Name("fmqbench").Logger(log))
	if err != nil {
		return err
	}
	defer w.Close()

	readers := make([]*fmq.Unsynchronized[message], cfg.readers)
	for i := range readers {
		if readers[i], err = fmq.BuildUnsynchronized[message](fmq.Attach(w.Descriptor()).Logger(log)); err != nil {
			return err
		}
		defer readers[i].Close()
	}

	log.Info("starting", "flavor", "unsync", "count", cfg.count, "messages", cfg.messages,
		"batch", cfg.batch, "readers", cfg.readers)
	g, ctx := errgroup.WithContext(ctx)
	var done atomix.Bool
	start := time.Now()

	g.Go(func() error {
		defer done.Store(true)
		return write(ctx, cfg, func(batch []message) error {
			return w.Write(batch)
		})
	})

	for id, r := range readers {
		g.Go(func() error {
			received, overflows, err := drain(ctx, r, cfg.batch, &done)
			if err != nil {
				return fmt.Errorf("reader %d: %w", id, err)
			}
			log.Info("reader done", "reader", id, "received", received, "overflows", overflows)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	report(log, cfg, time.Since(start))
	return nil
}

// drain reads batches from r until done is set and nothing is left.
// Once the writer is done, reads shrink to what is available so a final
// partial batch is received too.
func drain(ctx context.Context, r *fmq.Unsynchronized[message], batch int, done *atomix.Bool) (received, overflows uint64, err error) {
	buf := make([]message, batch)
	backoff := iox.Backoff{}
	for {
		finished := done.Load()
		n := batch
		if finished {
			n = min(batch, r.AvailableToRead())
			if n == 0 {
				return received, overflows, nil
			}
		}
		err := r.Read(buf[:n])
		switch {
		case err == nil:
			received += uint64(n)
			backoff.Reset()
		case errors.Is(err, fmq.ErrOverflow):
			overflows++
		case fmq.IsWouldBlock(err):
			if ctx.Err() != nil {
				return received, overflows, nil
			}
			backoff.Wait()
		default:
			return received, overflows, err
		}
	}
}

// write sends cfg.messages sequenced messages in batches through send.
func write(ctx context.Context, cfg config, send func([]message) error) error {
	buf := make([]message, cfg.batch)
	for next := uint64(0); next < cfg.messages; {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(uint64(cfg.batch), cfg.messages-next)
		now := time.Now().UnixNano()
		for i := range buf[:n] {
			buf[i] = message{Seq: next + uint64(i), Sent: now}
		}
		if err := send(buf[:n]); err != nil {
			return fmt.Errorf("write at %d: %w", next, err)
		}
		next += n
	}
	return nil
}

func report(log *slog.Logger, cfg config, elapsed time.Duration) {
	rate := float64(cfg.messages) / elapsed.Seconds()
	log.Info("finished",
		"elapsed", elapsed.Round(time.Millisecond),
		"msgs_per_sec", fmt.Sprintf("%.0f", rate),
		"mib_per_sec", fmt.Sprintf("%.1f", rate*64/(1<<20)))
}
