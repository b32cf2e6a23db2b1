package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	configHolder atomic.Value
	backend      = "consul"
	backendAddr  = "127.0.0.1:8500"
	backendPath  = "development" // e.g., app/<env>/<service_name>
	configType   = "yaml"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"` // grpc | http
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Auth struct {
		TokenSecret string        `mapstructure:"TOKEN_SECRET"`
		TokenTTL    time.Duration `mapstructure:"TOKEN_TTL"`
		Issuer      string        `mapstructure:"ISSUER"`
	} `mapstructure:"AUTH"`
	AccessControl struct {
		Model  string `mapstructure:"MODEL"`
		Policy string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	Gateway struct {
		BaseURL         string            `mapstructure:"BASE_URL"`
		APIKey          string            `mapstructure:"API_KEY"`
		SecretKey       string            `mapstructure:"SECRET_KEY"`
		Timeout         time.Duration     `mapstructure:"TIMEOUT"`
		RegisterReturn  string            `mapstructure:"REGISTER_RETURN_URL"`
		PaymentReturn   string            `mapstructure:"PAYMENT_RETURN_URL"`
		PaymentConfirm  string            `mapstructure:"PAYMENT_CONFIRMATION_URL"`
		PlanIDs         map[string]string `mapstructure:"PLAN_IDS"`
		WebhookMaxBytes int64             `mapstructure:"WEBHOOK_MAX_BYTES"`
	} `mapstructure:"GATEWAY"`
	Billing struct {
		GracePeriod     time.Duration `mapstructure:"GRACE_PERIOD"`
		IntervalMonths  int           `mapstructure:"INTERVAL_MONTHS"`
		JobMaxRetry     int           `mapstructure:"JOB_MAX_RETRY"`
		JobTimeout      time.Duration `mapstructure:"JOB_TIMEOUT"`
		SweepBatchLimit int           `mapstructure:"SWEEP_BATCH_LIMIT"`
	} `mapstructure:"BILLING"`
	Finance struct {
		DueDay       int           `mapstructure:"DUE_DAY"`
		OverdueAfter time.Duration `mapstructure:"OVERDUE_AFTER"`
	} `mapstructure:"FINANCE"`
	Scheduler struct {
		Enabled        bool          `mapstructure:"ENABLED"`
		Timezone       string        `mapstructure:"TIMEZONE"`
		SuspensionSpec string        `mapstructure:"SUSPENSION_SPEC"`
		FeeAgingSpec   string        `mapstructure:"FEE_AGING_SPEC"`
		TickTimeout    time.Duration `mapstructure:"TICK_TIMEOUT"`
		LockTTL        time.Duration `mapstructure:"LOCK_TTL"`
	} `mapstructure:"SCHEDULER"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Consul struct {
		Addr        string `mapstructure:"ADDR"`
		ServiceHost string `mapstructure:"SERVICE_HOST"`
	} `mapstructure:"CONSUL"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))
var RemoteModule = fx.Module("remote.config", fx.Provide(LoadRemote))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

// SetDefaults registers the values a bare environment runs with.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "lanovena-api")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("OTEL.PROTOCOL", "grpc")
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("GRPC_SERVER.ADDR", "9090")
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("AUTH.TOKEN_TTL", 24*time.Hour)
	v.SetDefault("AUTH.ISSUER", "lanovena")
	v.SetDefault("GATEWAY.BASE_URL", "https://sandbox.flow.cl/api")
	v.SetDefault("GATEWAY.TIMEOUT", 10*time.Second)
	v.SetDefault("GATEWAY.WEBHOOK_MAX_BYTES", 1<<20)
	v.SetDefault("BILLING.GRACE_PERIOD", 48*time.Hour)
	v.SetDefault("BILLING.INTERVAL_MONTHS", 1)
	v.SetDefault("BILLING.JOB_MAX_RETRY", 5)
	v.SetDefault("BILLING.JOB_TIMEOUT", 30*time.Second)
	v.SetDefault("BILLING.SWEEP_BATCH_LIMIT", 250)
	v.SetDefault("FINANCE.DUE_DAY", 5)
	v.SetDefault("FINANCE.OVERDUE_AFTER", 24*time.Hour)
	v.SetDefault("SCHEDULER.ENABLED", true)
	v.SetDefault("SCHEDULER.TIMEZONE", "America/Santiago")
	v.SetDefault("SCHEDULER.SUSPENSION_SPEC", "0 4 * * *")
	v.SetDefault("SCHEDULER.FEE_AGING_SPEC", "30 4 * * *")
	v.SetDefault("SCHEDULER.TICK_TIMEOUT", 10*time.Minute)
	v.SetDefault("SCHEDULER.LOCK_TTL", 15*time.Minute)
	v.SetDefault("GATEWAY.PLAN_IDS", map[string]string{
		"SEMILLERO":        "plan_semillero_v1",
		"PROFESIONAL":      "plan_pro_v1",
		"ALTO_RENDIMIENTO": "plan_elite_v1",
	})

	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range []string{
		"APP_VERSION", "TLS.ENABLE", "TLS.CERT_PATH", "TLS.KEY_PATH", "OTEL.ADDR", "PYROSCOPE.ADDR",
		"DATABASE.HOST", "DATABASE.PORT", "DATABASE.DBNAME", "DATABASE.USER", "DATABASE.PASSWORD", "DATABASE.AUTO_MIGRATE",
		"REDIS.PASSWORD", "REDIS.DB", "AUTH.TOKEN_SECRET", "ACCESS_CONTROL.MODEL", "ACCESS_CONTROL.POLICY",
		"GATEWAY.API_KEY", "GATEWAY.SECRET_KEY", "GATEWAY.REGISTER_RETURN_URL", "GATEWAY.PAYMENT_RETURN_URL",
		"GATEWAY.PAYMENT_CONFIRMATION_URL", "FLAGSMITH.ADDR", "FLAGSMITH.API_KEY", "CONSUL.ADDR", "CONSUL.SERVICE_HOST",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads config.yaml (when present) and the environment into a Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType(configType)
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadConfig(p Params) *Config {
	cfg, err := Load(viper.New())
	if err != nil {
		zap.L().Error("failed to load config", zap.Error(err))
		os.Exit(1)
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, cfg); err != nil {
			zap.L().Error("failed get secret from vault", zap.Error(err))
			os.Exit(1)
		}
	}

	return cfg
}

func LoadRemote(p Params) *Config {
	if p.Vault == nil {
		zap.L().Error("vault can't provide")
		os.Exit(1)
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		backend = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok {
		backendAddr = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok {
		backendPath = v
	}

	remote := viper.New()
	SetDefaults(remote)
	remote.SetConfigType(configType)
	if err := remote.AddRemoteProvider(backend, backendAddr, backendPath); err != nil {
		zap.L().Error("failed to add remote config provider", zap.Error(err))
		os.Exit(1)
	}

	if err := remote.ReadRemoteConfig(); err != nil {
		zap.L().Error("failed to read remote config", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := remote.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal remote config", zap.Error(err))
		os.Exit(1)
	}

	if err := applySecrets(context.Background(), p.Vault, &cfg); err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		os.Exit(1)
	}
	configHolder.Store(&cfg)

	go func() {
		for {
			time.Sleep(time.Second * 5)

			if err := remote.WatchRemoteConfig(); err != nil {
				zap.L().Error("unable to read remote config", zap.Error(err))
				continue
			}

			var newcfg Config
			if err := remote.Unmarshal(&newcfg); err != nil {
				zap.L().Error("unable to unmarshal remote config", zap.Error(err))
				continue
			}
			if err := applySecrets(context.Background(), p.Vault, &newcfg); err != nil {
				zap.L().Error("unable to refresh secrets", zap.Error(err))
				continue
			}
			configHolder.Store(&newcfg)
		}
	}()

	return &cfg
}

// Current returns the latest remote snapshot, if remote config is in use.
func Current() *Config {
	cfg, _ := configHolder.Load().(*Config)
	return cfg
}

func applySecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		return err
	}
	zap.L().Info("Success Get Secret")

	get := func(key, fallback string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.User = get("postgres_user", cfg.Database.User)
	cfg.Database.Password = get("postgres_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Auth.TokenSecret = get("token_secret", cfg.Auth.TokenSecret)
	cfg.Gateway.APIKey = get("flow_api_key", cfg.Gateway.APIKey)
	cfg.Gateway.SecretKey = get("flow_secret_key", cfg.Gateway.SecretKey)
	cfg.Flagsmith.ApiKey = get("flagsmith_api_key", cfg.Flagsmith.ApiKey)
	return nil
}
