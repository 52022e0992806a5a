package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Engine    EngineConfig
	Monitor   MonitorConfig
	Merge     MergeConfig
	RateLimit RateLimitConfig
	Artifacts ArtifactsConfig

	// WorkDir is the root under which each project owns a working directory.
	WorkDir string
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

// EngineConfig locates the external docking engine and bounds a run.
type EngineConfig struct {
	Bin           string
	ProtocolXML   string
	OptionsFile   string
	MaxReplicates int
	CancelGrace   time.Duration
	MaxRunTime    time.Duration
}

type MonitorConfig struct {
	PollInterval time.Duration
	StartupGrace time.Duration
}

type MergeConfig struct {
	Gap        float64
	MaxRetries int
}

type RateLimitConfig struct {
	DockPerHour int
	MergePerMin int
}

// ArtifactsConfig configures optional object storage for completed runs.
// An empty backend disables uploads.
type ArtifactsConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("workdir", "./workspace")
	viper.SetDefault("engine.bin", "rosetta_scripts")
	viper.SetDefault("engine.protocol_xml", "docking_full.xml")
	viper.SetDefault("engine.options_file", "docking.options.txt")
	viper.SetDefault("engine.max_replicates", 1000)
	viper.SetDefault("engine.cancel_grace_seconds", 10)
	viper.SetDefault("engine.max_run_minutes", 720)
	viper.SetDefault("monitor.poll_interval_ms", 750)
	viper.SetDefault("monitor.startup_grace_seconds", 30)
	viper.SetDefault("merge.gap", 2.0)
	viper.SetDefault("merge.max_retries", 25)
	viper.SetDefault("ratelimit.dock_per_hour", 20)
	viper.SetDefault("ratelimit.merge_per_min", 30)
	viper.SetDefault("artifacts.backend", "")
	viper.SetDefault("artifacts.endpoint", "")
	viper.SetDefault("artifacts.access_key", "")
	viper.SetDefault("artifacts.secret_key", "")
	viper.SetDefault("artifacts.bucket", "docking-artifacts")
	viper.SetDefault("artifacts.use_ssl", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		Engine: EngineConfig{
			Bin:           viper.GetString("engine.bin"),
			ProtocolXML:   viper.GetString("engine.protocol_xml"),
			OptionsFile:   viper.GetString("engine.options_file"),
			MaxReplicates: viper.GetInt("engine.max_replicates"),
			CancelGrace:   time.Duration(viper.GetInt("engine.cancel_grace_seconds")) * time.Second,
			MaxRunTime:    time.Duration(viper.GetInt("engine.max_run_minutes")) * time.Minute,
		},
		Monitor: MonitorConfig{
			PollInterval: time.Duration(viper.GetInt("monitor.poll_interval_ms")) * time.Millisecond,
			StartupGrace: time.Duration(viper.GetInt("monitor.startup_grace_seconds")) * time.Second,
		},
		Merge: MergeConfig{
			Gap:        viper.GetFloat64("merge.gap"),
			MaxRetries: viper.GetInt("merge.max_retries"),
		},
		RateLimit: RateLimitConfig{
			DockPerHour: viper.GetInt("ratelimit.dock_per_hour"),
			MergePerMin: viper.GetInt("ratelimit.merge_per_min"),
		},
		Artifacts: ArtifactsConfig{
			Backend:   viper.GetString("artifacts.backend"),
			Endpoint:  viper.GetString("artifacts.endpoint"),
			AccessKey: viper.GetString("artifacts.access_key"),
			SecretKey: viper.GetString("artifacts.secret_key"),
			Bucket:    viper.GetString("artifacts.bucket"),
			UseSSL:    viper.GetBool("artifacts.use_ssl"),
		},
		WorkDir: viper.GetString("workdir"),
	}

	return cfg, nil
}
