package config

import (
	"os"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "SAMPLE_INTERVAL_MS", "PERSIST_INTERVAL_MS", "DEFAULT_VOLUME", "PREVIOUS_THRESHOLD_SECONDS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := FromEnv()
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, StoreMemory)
	}
	if cfg.SampleInterval != 100*time.Millisecond {
		t.Errorf("SampleInterval = %v, want 100ms", cfg.SampleInterval)
	}
	if cfg.PersistInterval != time.Second {
		t.Errorf("PersistInterval = %v, want 1s", cfg.PersistInterval)
	}
	if cfg.DefaultVolume != 0.5 {
		t.Errorf("DefaultVolume = %v, want 0.5", cfg.DefaultVolume)
	}
	if cfg.PreviousThreshold != 3 {
		t.Errorf("PreviousThreshold = %v, want 3", cfg.PreviousThreshold)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreRedis)
	t.Setenv("REDIS_DB", "4")
	t.Setenv("SAMPLE_INTERVAL_MS", "250")
	t.Setenv("DEFAULT_VOLUME", "0.8")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := FromEnv()
	if cfg.StoreBackend != StoreRedis {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, StoreRedis)
	}
	if cfg.RedisDB != 4 {
		t.Errorf("RedisDB = %d, want 4", cfg.RedisDB)
	}
	if cfg.SampleInterval != 250*time.Millisecond {
		t.Errorf("SampleInterval = %v, want 250ms", cfg.SampleInterval)
	}
	if cfg.DefaultVolume != 0.8 {
		t.Errorf("DefaultVolume = %v, want 0.8", cfg.DefaultVolume)
	}
	if !cfg.MinioUseSSL {
		t.Error("MinioUseSSL = false, want true")
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("DEFAULT_VOLUME", "1.7")
	t.Setenv("SAMPLE_INTERVAL_MS", "-5")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := FromEnv()
	if cfg.DefaultVolume != 0.5 {
		t.Errorf("DefaultVolume = %v, want fallback 0.5", cfg.DefaultVolume)
	}
	if cfg.SampleInterval != 100*time.Millisecond {
		t.Errorf("SampleInterval = %v, want fallback 100ms", cfg.SampleInterval)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("RedisDB = %d, want fallback 0", cfg.RedisDB)
	}
}
