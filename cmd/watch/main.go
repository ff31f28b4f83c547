package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/client"
	"clothcraft.ai/internal/logging"
	"clothcraft.ai/internal/sim/tuning"
	"clothcraft.ai/internal/transport/ws"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "server websocket url")
		uid        = flag.String("uid", "watcher", "player uid sent in HELLO")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (must match the server)")
		every      = flag.Duration("every", 2*time.Second, "stats log interval")
		rate       = flag.Int("rate", 60, "prediction frames per second")
		logLevel   = flag.String("log_level", "info", "log level")
		logFormat  = flag.String("log_format", "text", "log format: text|json")
	)
	flag.Parse()

	logger := logging.New(*logLevel, *logFormat)
	log := logger.WithField("component", "watch")

	tune := tuning.Defaults()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			log.WithError(err).Fatal("load tuning")
		}
		tune = t
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		err := watch(ctx, *url, *uid, tune, *rate, *every, logger)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("stream closed; rejoining")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// watch mirrors one session from its join snapshot until the stream stops.
func watch(ctx context.Context, url, uid string, tune tuning.Tuning, rate int, every time.Duration, logger *logrus.Logger) error {
	log := logger.WithField("component", "watch")

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := ws.Dial(dialCtx, url, uid)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	params := conn.Welcome.WorldParams
	if params.TuningDigest != "" && params.TuningDigest != tune.Digest() {
		log.Warn("tuning differs from the server; prediction will drift")
	}
	if params.ChunkSize[2] > 0 {
		tune.ChunkHeight = params.ChunkSize[2]
	}
	log.WithFields(logrus.Fields{"session": conn.Welcome.SessionID, "seed": params.Seed}).Info("connected")

	mirror := client.NewMirror(params.Seed, tune, nil, logger)
	sess, stop := context.WithCancel(ctx)
	defer stop()
	msgs, errc := conn.Stream(sess)

	frame := time.NewTicker(time.Second / time.Duration(max(rate, 1)))
	defer frame.Stop()
	report := time.NewTicker(every)
	defer report.Stop()
	last := time.Now()

	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			mirror.Apply(m)
		case err := <-errc:
			return err
		case now := <-frame.C:
			mirror.Tick(now.Sub(last).Seconds())
			last = now
		case <-report.C:
			st := mirror.Stats()
			fields := logrus.Fields{
				"systems": st.Systems,
				"points":  st.Points,
				"applied": st.Applied,
				"ignored": st.Ignored,
			}
			if st.Points > 0 {
				fields["lowest_y"] = st.LowestY
			}
			log.WithFields(fields).Info("mirror")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
