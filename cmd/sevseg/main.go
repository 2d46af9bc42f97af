package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/sevseg"
	"github.com/coreman2200/sevseg/internal/config"
	diag "github.com/coreman2200/sevseg/internal/diagnostics"
	"github.com/coreman2200/sevseg/internal/sequence"
	"github.com/coreman2200/sevseg/internal/ws"
	"github.com/coreman2200/sevseg/mirror"
	"github.com/coreman2200/sevseg/pins"
	"github.com/coreman2200/sevseg/refresh"
	"github.com/coreman2200/sevseg/sim"
)

func main() {
	// ---- Flags (explicitly set flags win over config.yaml) ----
	var (
		configPath  = flag.String("config", "config.yaml", "path to config.yaml")
		driver      = flag.String("driver", "sim", "pin provider: periph | cdev | rpio | expander | sim")
		polarity    = flag.String("polarity", "cathode", "display polarity: cathode | anode")
		digitPins   = flag.String("digits", "", "comma separated digit pins, leftmost first")
		segmentPins = flag.String("segments", "", "comma separated segment pins A,B,C,D,E,F,G,DP")
		dwell       = flag.Duration("dwell", sevseg.DefaultDwell, "time each digit stays lit")
		value       = flag.Int("value", 0, "value to show")
		decimal     = flag.Int("decimal", 0, "decimal point position from the left, 0 for none")
		addr        = flag.String("addr", "", "preview HTTP listen address, e.g. :8080")
		console     = flag.Bool("console", false, "mirror the display on the terminal")
		mirrorPort  = flag.String("mirror", "", "mirror the display on a WS2812 strip at this SPI port")
		program     = flag.String("program", "", "playlist file to run instead of -value")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Load config.yaml (optional) ----
	cfg := config.Default()
	if c, err := config.Load(*configPath); err != nil {
		ev := log.Warn()
		if errors.Is(err, fs.ErrNotExist) {
			ev = log.Debug()
		}
		ev.Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "polarity":
			p, err := sevseg.ParsePolarity(*polarity)
			flagErr = errors.Join(flagErr, err)
			cfg.Polarity = p
		case "digits":
			cfg.Digits = splitList(*digitPins)
		case "segments":
			cfg.Segments = splitList(*segmentPins)
		case "dwell":
			cfg.DwellUs = int(*dwell / time.Microsecond)
		case "value":
			cfg.Value = *value
		case "decimal":
			cfg.Decimal = *decimal
		case "addr":
			cfg.Preview.Addr = *addr
		case "program":
			p, err := config.LoadProgram(*program)
			flagErr = errors.Join(flagErr, err)
			cfg.Program = p
		}
	})
	if err := errors.Join(flagErr, cfg.Validate()); err != nil {
		fatalConfig(err)
	}

	// ---- Pin provider: fall back to the simulator like any missing hardware ----
	board := sim.NewBoard()
	board.KeepEvents(0)
	board.RealTime(true)

	selected := cfg.Driver
	var fallback *diag.Diagnostic
	prov, err := pins.Open(pins.Options{
		Kind:    pins.Kind(selected),
		Chip:    cfg.CDev.Chip,
		Bus:     cfg.Expander.Bus,
		Addr:    cfg.Expander.Addr,
		Variant: cfg.Expander.Variant,
		Board:   board,
	})
	if err != nil {
		log.Warn().Err(err).Str("driver", selected).Msg("pin provider failed; falling back to SIM")
		d := diag.FromFallback(selected, err)
		fallback = &d
		selected = string(pins.Sim)
		prov, _ = pins.Open(pins.Options{Kind: pins.Sim, Board: board})
	}
	defer prov.Close()

	digits, err := pins.Resolve(prov, cfg.Digits)
	if err != nil {
		log.Fatal().Err(err).Str("driver", selected).Msg("resolve digit pins")
	}
	segments, err := pins.Resolve(prov, cfg.Segments)
	if err != nil {
		log.Fatal().Err(err).Str("driver", selected).Msg("resolve segment pins")
	}

	simBoard := pins.Board(prov)
	var waiter sevseg.Waiter
	if simBoard != nil {
		waiter = simBoard
	}
	drv, err := sevseg.New(sevseg.Config{
		Polarity:     cfg.Polarity,
		InvertDigits: cfg.InvertDigits,
		Dwell:        cfg.Dwell(),
		Waiter:       waiter,
	}, digits, segments)
	if err != nil {
		fatalConfig(err)
	}
	defer drv.Halt()
	n := drv.Digits()
	log.Info().Stringer("display", drv).Str("driver", selected).Msg("display ready")

	loop := refresh.New(drv)
	loop.Show(cfg.Value, cfg.Decimal)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup

	// ---- Playlist ----
	if cfg.Program != nil {
		player := sequence.NewSafePlayer(sequence.Hooks{Show: func(v, dp int) {
			log.Debug().Int("value", v).Int("decimal", dp).Msg("program step")
			loop.Show(v, dp)
		}})
		var loadErr error
		player.With(func(p *sequence.Player) {
			if loadErr = p.Load(*cfg.Program); loadErr == nil {
				p.Start()
			}
		})
		if loadErr != nil {
			log.Fatal().Err(loadErr).Msg("program rejected")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(ctx, 50*time.Millisecond, func(dt time.Duration) {
				player.With(func(p *sequence.Player) { p.Tick(dt.Seconds()) })
			})
		}()
	}

	// ---- Mirror ----
	var m *mirror.Mirror
	switch {
	case *mirrorPort != "":
		if m, err = mirror.Open(*mirrorPort, n); err != nil {
			log.Warn().Err(err).Str("port", *mirrorPort).Msg("mirror unavailable")
		}
	case *console:
		m = mirror.Console(n)
	}
	if m != nil {
		defer m.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(ctx, 100*time.Millisecond, func(time.Duration) {
				if err := m.Render(loop.Current(n)); err != nil {
					log.Debug().Err(err).Msg("mirror render")
				}
			})
		}()
	}

	// ---- Preview server ----
	var srv *http.Server
	if cfg.Preview.Addr != "" {
		state := ws.NewState(n, loop)
		state.ConfigPath = *configPath
		state.Config = cfg
		state.CurrentDriver = selected
		if fallback != nil {
			state.PushDiag(*fallback)
		}
		if simBoard != nil {
			state.Attach(sim.Attach(simBoard, wiring(cfg, drv.Levels())))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				every(ctx, 50*time.Millisecond, func(time.Duration) {
					f := loop.Current(n)
					state.Publish(f, segmentsOf(f))
				})
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.Run(ctx, 50*time.Millisecond)
		}()

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", state.HandleFramesWS)
		mux.HandleFunc("/diag", state.HandleDiagWS)
		mux.HandleFunc("/control", state.HandleControlWS)
		mux.HandleFunc("/health", state.HandleHealth)

		srv = &http.Server{
			Addr:         cfg.Preview.Addr,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Str("driver", selected).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("http server crashed")
			}
		}()
	}

	// ---- Refresh until a signal, then blank ----
	if err := loop.Run(ctx); err != nil {
		log.Error().Err(err).Msg("blank on shutdown")
	}
	st := loop.Stats()
	log.Info().Uint64("passes", st.Frames).Uint64("errors", st.Errors).Msg("shutting down")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}
	wg.Wait()
}

func fatalConfig(err error) {
	d := diag.FromConfigError(err)
	log.Fatal().Err(err).Str("code", d.Code).Strs("fixes", d.SuggestedFixes).Msg(d.Summary)
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func wiring(cfg *config.Config, l sevseg.Levels) sim.Wiring {
	w := sim.Wiring{Digits: cfg.Digits, Levels: l}
	copy(w.Segments[:], cfg.Segments)
	return w
}

func segmentsOf(f sevseg.Frame) []sevseg.Segments {
	out := make([]sevseg.Segments, len(f))
	for i, c := range f {
		out[i], _ = c.Segments()
	}
	return out
}

// every calls f with the elapsed time on each tick until ctx ends.
func every(ctx context.Context, d time.Duration, f func(dt time.Duration)) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			f(t.Sub(last))
			last = t
		}
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
