package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor"
	_ "github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/backends/fake"
	_ "github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/backends/miniaudio"
	_ "github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/backends/portaudio"
	_ "github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/backends/pulseaudio"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	loggerLevel := logger.LevelInfo
	if err := loggerLevel.Set(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level '%s': %v\n", cfg.LogLevel, err)
		os.Exit(2)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if cfg.NetPprofListenAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(cfg.NetPprofListenAddr, nil)) })
	}

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()
	if cfg.Duration > 0 {
		ctx, cancelFn = context.WithTimeout(ctx, cfg.Duration)
		defer cancelFn()
	}

	if err := record(ctx, cfg, os.Stdout); err != nil {
		logger.Error(ctx, err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

func openDevice(ctx context.Context, backend string) (types.Device, error) {
	if backend == "" {
		return voiceprocessor.NewDeviceAuto(ctx), nil
	}
	return voiceprocessor.NewDeviceByName(ctx, backend)
}

// record captures until ctx is done or the capture fails.
func record(
	ctx context.Context,
	cfg *config,
	out io.Writer,
) (_err error) {
	logger.Debugf(ctx, "record(%#+v)", cfg)
	defer func() { logger.Debugf(ctx, "/record(%#+v): %v", cfg, _err) }()

	device, err := openDevice(ctx, cfg.Backend)
	if err != nil {
		return fmt.Errorf("unable to open the capture device: %w", err)
	}
	defer func() {
		if err := device.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the capture device: %v", err)
		}
	}()

	engine := voiceprocessor.NewEngine(device, nil)
	defer func() {
		if err := engine.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Errorf(ctx, "unable to stop the capture: %v", err)
		}
	}()

	wc := datacounter.NewWriterCounter(out)
	var (
		failureLocker sync.Mutex
		failure       error
		failedCh      = make(chan struct{})
	)
	setFailure := func(err error) {
		failureLocker.Lock()
		defer failureLocker.Unlock()
		if failure != nil {
			return
		}
		failure = err
		close(failedCh)
	}

	engine.AddErrorListener(voiceprocessor.ErrorListenerFunc(func(ctx context.Context, err *voiceprocessor.CaptureError) {
		setFailure(err)
	}))
	engine.AddFrameListener(newPCMWriter(wc, func(ctx context.Context, err error) {
		setFailure(fmt.Errorf("unable to write the samples: %w", err))
		if err := engine.Stop(ctx); err != nil {
			logger.Errorf(ctx, "unable to stop the capture: %v", err)
		}
	}))

	logger.Infof(ctx, "starting...")
	if err := engine.Start(ctx, cfg.FrameLength, types.SampleRate(cfg.SampleRate)); err != nil {
		return fmt.Errorf("unable to start the capture: %w", err)
	}
	if info, ok := engine.Session(); ok {
		logger.Infof(ctx, "capturing: session %s, %d samples per frame at %d Hz, buffer of %d samples", info.ID, info.FrameLength, info.SampleRate, info.BufferSize)
	}

	statsCtx, statsCancelFn := context.WithCancel(ctx)
	defer statsCancelFn()
	observability.Go(statsCtx, func() {
		ctx := statsCtx
		logger.Tracef(ctx, "started the traffic count printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "written: %d, state: %s", wc.Count(), engine.State())
			}
		}
	})

	select {
	case <-ctx.Done():
		logger.Infof(ctx, "stopping: %v", context.Cause(ctx))
	case <-failedCh:
	}

	if err := engine.Stop(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("unable to stop the capture: %w", err)
	}
	logger.Infof(ctx, "written %d bytes in total", wc.Count())

	failureLocker.Lock()
	defer failureLocker.Unlock()
	return failure
}

// pcmWriter encodes every frame as S16LE.
type pcmWriter struct {
	writer  io.Writer
	onError func(ctx context.Context, err error)
	buf     []byte
}

var _ voiceprocessor.FrameListener = (*pcmWriter)(nil)

func newPCMWriter(
	writer io.Writer,
	onError func(ctx context.Context, err error),
) *pcmWriter {
	return &pcmWriter{
		writer:  writer,
		onError: onError,
	}
}

func (w *pcmWriter) OnFrame(ctx context.Context, frame voiceprocessor.Frame) {
	size := len(frame.Samples) * int(types.PCMFormatS16LE.Size())
	if cap(w.buf) < size {
		w.buf = make([]byte, size)
	}
	buf := w.buf[:size]
	for idx, sample := range frame.Samples {
		binary.LittleEndian.PutUint16(buf[idx*2:], uint16(sample))
	}
	if _, err := w.writer.Write(buf); err != nil {
		w.onError(ctx, err)
	}
}
