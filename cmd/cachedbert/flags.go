package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/cachedbert/internal/backend/cpu"
	"github.com/born-ml/cachedbert/internal/cachedbert"
)

var (
	logLevel  string
	logFormat string
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
	}
}

// modelOptions are shared by every command that builds a model.
type modelOptions struct {
	configPath string
	preset     string
	workers    int64
}

func (o *modelOptions) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "model config file (.yaml, .yml or .json)",
			Destination: &o.configPath,
		},
		&cli.StringFlag{
			Name:        "preset",
			Aliases:     []string{"p"},
			Usage:       "built-in config (" + strings.Join(cachedbert.PresetNames(), ", ") + "), ignored with --config",
			Value:       "gpt2-small",
			Destination: &o.preset,
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "CPU worker goroutines for batched matmuls (0 = one per CPU)",
			Destination: &o.workers,
		},
	}
}

func (o *modelOptions) config() (cachedbert.Config, error) {
	if o.configPath != "" {
		return cachedbert.LoadConfig(o.configPath)
	}
	return cachedbert.Preset(o.preset)
}

func (o *modelOptions) backend() *cpu.CPUBackend {
	if o.workers > 0 {
		return cpu.New(cpu.WithWorkers(int(o.workers)))
	}
	return cpu.New()
}

// samplingOptions configure token selection.
type samplingOptions struct {
	seed        int64
	temperature float64
	topK        int64
	topP        float64
	penalty     float64
}

func (o *samplingOptions) flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "seed",
			Usage:       "random seed (-1 = random)",
			Value:       -1,
			Destination: &o.seed,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Aliases:     []string{"t"},
			Usage:       "sampling temperature (0 = greedy)",
			Value:       1,
			Destination: &o.temperature,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "keep the K most likely tokens (0 = off)",
			Destination: &o.topK,
		},
		&cli.FloatFlag{
			Name:        "top-p",
			Usage:       "nucleus sampling mass (1 = off)",
			Value:       1,
			Destination: &o.topP,
		},
		&cli.FloatFlag{
			Name:        "repeat-penalty",
			Usage:       "penalty for tokens already in the context (1 = off)",
			Value:       1,
			Destination: &o.penalty,
		},
	}
}

func positive(name string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("--%s must be positive, got %d", name, v)
	}
	return nil
}
