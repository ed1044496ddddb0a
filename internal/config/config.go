package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

type Config struct {
	// Output sink for file payload bytes (filename = node UUID).
	OutputDir string

	// Optional mirror of every incoming file, for debugging.
	DebugBackupDir string

	// Concurrent request handling and engine pool sizing.
	MaxWorkers     int
	TreePoolSize   int
	AcquireTimeout time.Duration

	// Per-flavor batch pools.
	Batch whisper.BatchConfig
}

func Load() Config {
	cpu := runtime.NumCPU()

	cfg := Config{
		OutputDir:      os.Getenv("FILE_WHISPERER_OUTPUT_DIR"),
		DebugBackupDir: os.Getenv("FILE_WHISPERER_DEBUG_BACKUP_DIR"),

		MaxWorkers:     scaleWorkers(envOr("GRPC_MAX_WORKERS", "0.5"), cpu),
		TreePoolSize:   scaleWorkers(envOr("TREE_POOL_SIZE", "0.5"), cpu),
		AcquireTimeout: time.Duration(envFloat("TREE_POOL_ACQUIRE_TIMEOUT", 3) * float64(time.Second)),

		Batch: whisper.BatchConfig{
			OCR:     poolConfig("OCR", true, 2),
			Word:    poolConfig("WORD", false, 1),
			PDF:     poolConfig("PDF", false, 1),
			HTML:    poolConfig("HTML", false, 1),
			Archive: poolConfig("ARCHIVE", false, 1),
		},
	}

	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 3 * time.Second
	}
	return cfg
}

func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("FILE_WHISPERER_OUTPUT_DIR is required")
	}
	return nil
}

// scaleWorkers interprets a worker-count setting against the logical
// core count: negative means cpu × |v|, a fraction means cpu × v, one
// or more means that exact count, zero means one. Never below one.
func scaleWorkers(value string, cpu int) int {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return max(1, cpu/2)
	}

	var n int
	switch {
	case v < 0:
		n = int(float64(cpu) * -v)
	case v > 0 && v < 1:
		n = int(float64(cpu) * v)
	case v >= 1:
		n = int(v)
	default:
		n = 1
	}
	return max(1, n)
}

func poolConfig(name string, enabled bool, workers int) whisper.PoolConfig {
	pc := whisper.PoolConfig{
		Enabled: envBool("FILEWHISPERER_"+name+"_POOL_ENABLED", enabled),
		Workers: envInt("FILEWHISPERER_"+name+"_POOL_WORKERS", workers),
	}
	if pc.Workers < 1 {
		pc.Workers = workers
	}
	return pc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
