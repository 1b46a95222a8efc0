package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "clips_db", cfg.Database.Database)
				assert.Equal(t, "clips_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "clips_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "clips", cfg.Storage.Bucket)
				assert.Equal(t, "clip-api-service", cfg.App.Name)
				assert.Equal(t, 10*time.Minute, cfg.Clip.MaxClipDuration)
				assert.Equal(t, 1500*time.Millisecond, cfg.Clip.DriftTolerance)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "clips_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "clips_exchange"},
			Queue:    QueueConfig{Name: "clips_queue"},
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
			Bucket:   "clips",
		},
		Worker: WorkerConfig{
			Concurrency:     4,
			JobTimeout:      20 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Clip: ClipConfig{
			MaxClipDuration: 10 * time.Minute,
			MaxActiveJobs:   50,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "empty storage endpoint",
			mutate:    func(c *Config) { c.Storage.Endpoint = "" },
			wantErr:   true,
			errString: "storage endpoint is required",
		},
		{
			name:      "empty storage bucket",
			mutate:    func(c *Config) { c.Storage.Bucket = "" },
			wantErr:   true,
			errString: "storage bucket is required",
		},
		{
			name:      "zero max clip duration",
			mutate:    func(c *Config) { c.Clip.MaxClipDuration = 0 },
			wantErr:   true,
			errString: "max_clip_duration",
		},
		{
			name:      "zero max active jobs",
			mutate:    func(c *Config) { c.Clip.MaxActiveJobs = 0 },
			wantErr:   true,
			errString: "max_active_jobs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "concurrency",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "job_timeout",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			wantErr:   true,
			errString: "shutdown_timeout",
		},
		{
			name:      "unbalanced quote in extra args",
			mutate:    func(c *Config) { c.Clip.ExtractorExtraArgs = `--foo "bar` },
			wantErr:   true,
			errString: "extractor_extra_args",
		},
		{
			name:      "bad artifact size",
			mutate:    func(c *Config) { c.Clip.MaxArtifactSize = "two gigabytes" },
			wantErr:   true,
			errString: "max_artifact_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestClipConfig_ParseHelpers(t *testing.T) {
	clip := ClipConfig{
		ExtractorExtraArgs: `--socket-timeout 15 --referer "https://example.com/watch page"`,
		MaxArtifactSize:    "2GB",
		MinFreeDisk:        "5GB",
		MinFreeMem:         "256MB",
	}

	args, err := clip.ParseExtraArgs()
	require.NoError(t, err)
	assert.Equal(t, []string{"--socket-timeout", "15", "--referer", "https://example.com/watch page"}, args)

	size, err := clip.ParseMaxArtifactSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(2*1024*1024*1024), size)

	disk, err := clip.ParseMinFreeDisk()
	require.NoError(t, err)
	assert.Equal(t, uint64(5*1024*1024*1024), disk)

	mem, err := clip.ParseMinFreeMem()
	require.NoError(t, err)
	assert.Equal(t, uint64(256*1024*1024), mem)

	empty := ClipConfig{}
	args, err = empty.ParseExtraArgs()
	require.NoError(t, err)
	assert.Nil(t, args)

	size, err = empty.ParseMaxArtifactSize()
	require.NoError(t, err)
	assert.Zero(t, size)
}
