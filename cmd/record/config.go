package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "VOICEPROCESSOR"

type config struct {
	LogLevel           string
	Backend            string
	FrameLength        int
	SampleRate         uint32
	Duration           time.Duration
	NetPprofListenAddr string
}

// loadConfig parses the flags; every flag may also be set through
// the environment, e.g. VOICEPROCESSOR_SAMPLE_RATE=48000.
func loadConfig(args []string) (*config, error) {
	flags := pflag.NewFlagSet("record", pflag.ContinueOnError)
	flags.String("log-level", "info", "Log level")
	flags.String("backend", "", "capture backend to use (empty means the first available one)")
	flags.Int("frame-length", 512, "amount of samples in each frame")
	flags.Uint32("sample-rate", 16000, "sample rate in Hz")
	flags.Duration("duration", 0, "stop after this much time (0 means until interrupted)")
	flags.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("unable to bind the flags: %w", err)
	}

	cfg := &config{
		LogLevel:           v.GetString("log-level"),
		Backend:            v.GetString("backend"),
		FrameLength:        v.GetInt("frame-length"),
		SampleRate:         v.GetUint32("sample-rate"),
		Duration:           v.GetDuration("duration"),
		NetPprofListenAddr: v.GetString("net-pprof-listen-addr"),
	}
	if cfg.FrameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive, but is %d", cfg.FrameLength)
	}
	if cfg.SampleRate == 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	return cfg, nil
}
