package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config는 애플리케이션 전체 설정입니다
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	MongoDB       MongoDBConfig       `mapstructure:"mongodb"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Crud          CrudConfig          `mapstructure:"crud"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig는 애플리케이션 기본 설정입니다
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig는 서버 설정입니다
type ServerConfig struct {
	HTTP HTTPServerConfig `mapstructure:"http"`
}

// HTTPServerConfig는 HTTP 서버 설정입니다
type HTTPServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
}

// MongoDBConfig는 MongoDB 설정입니다
type MongoDBConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
	MinPoolSize    uint64        `mapstructure:"min_pool_size"`
	MaxConnecting  uint64        `mapstructure:"max_connecting"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// RedisConfig는 Redis 설정입니다
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig는 Kafka 설정입니다
type KafkaConfig struct {
	Enabled  bool                `mapstructure:"enabled"`
	Brokers  []string            `mapstructure:"brokers"`
	ClientID string              `mapstructure:"client_id"`
	Topic    string              `mapstructure:"topic"`
	Producer KafkaProducerConfig `mapstructure:"producer"`
}

// KafkaProducerConfig는 Kafka Producer 설정입니다
type KafkaProducerConfig struct {
	MaxMessageBytes int           `mapstructure:"max_message_bytes"`
	RequiredAcks    int16         `mapstructure:"required_acks"`
	Compression     string        `mapstructure:"compression"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
}

// VaultConfig는 Vault 설정입니다
type VaultConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	Address        string         `mapstructure:"address"`
	Token          string         `mapstructure:"token"`
	AuthMethod     string         `mapstructure:"auth_method"`
	RoleID         string         `mapstructure:"role_id"`
	SecretID       string         `mapstructure:"secret_id"`
	Namespace      string         `mapstructure:"namespace"`
	TLS            VaultTLSConfig `mapstructure:"tls"`
	TransitPath    string         `mapstructure:"transit_path"`
	DefaultKeyName string         `mapstructure:"default_key_name"`
}

// VaultTLSConfig는 Vault TLS 설정입니다
type VaultTLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SkipVerify bool   `mapstructure:"skip_verify"`
	CACert     string `mapstructure:"ca_cert"`
}

// CrudConfig는 컬렉션 정의와 요청 처리 한도 설정입니다
type CrudConfig struct {
	DefinitionsFolder string        `mapstructure:"definitions_folder"`
	DefaultLimit      int64         `mapstructure:"default_limit"`
	MaxLimit          int64         `mapstructure:"max_limit"`
	ImportBatchSize   int           `mapstructure:"import_batch_size"`
	RateLimit         int64         `mapstructure:"rate_limit"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// ObservabilityConfig는 관찰성 설정입니다
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig는 로깅 설정입니다
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

// TracingConfig는 분산 추적 설정입니다
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// MetricsConfig는 메트릭 설정입니다
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig는 설정 파일을 로드합니다
func LoadConfig(configPath string, configName string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if configName != "" {
		v.SetConfigName(configName)
	} else {
		v.SetConfigName("config")
	}

	v.SetConfigType("yaml")

	// 환경변수 바인딩
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crud-service")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", 30*time.Second)
	v.SetDefault("server.http.write_timeout", 120*time.Second)
	v.SetDefault("server.http.shutdown_timeout", 15*time.Second)

	v.SetDefault("mongodb.max_pool_size", 100)
	v.SetDefault("mongodb.min_pool_size", 10)
	v.SetDefault("mongodb.max_connecting", 10)
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)
	v.SetDefault("mongodb.timeout", 30*time.Second)

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.client_id", "crud-service")
	v.SetDefault("kafka.topic", "crud-service.changes")
	v.SetDefault("kafka.producer.max_message_bytes", 1000000)
	v.SetDefault("kafka.producer.required_acks", -1)
	v.SetDefault("kafka.producer.compression", "snappy")
	v.SetDefault("kafka.producer.max_retries", 3)
	v.SetDefault("kafka.producer.retry_backoff", 100*time.Millisecond)

	v.SetDefault("vault.auth_method", "token")
	v.SetDefault("vault.transit_path", "transit")
	v.SetDefault("vault.default_key_name", "crud-service")

	v.SetDefault("crud.definitions_folder", "./definitions")
	v.SetDefault("crud.default_limit", 25)
	v.SetDefault("crud.max_limit", 200)
	v.SetDefault("crud.import_batch_size", 500)
	v.SetDefault("crud.rate_limit", 0)
	v.SetDefault("crud.rate_limit_window", time.Minute)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.service_name", "crud-service")
	v.SetDefault("observability.tracing.sampling_rate", 0.1)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.namespace", "crud_service")
}

// overrideFromEnv는 환경변수로 민감한 설정을 오버라이드합니다
func overrideFromEnv(config *Config) {
	if val := viper.GetString("MONGODB_URI"); val != "" {
		config.MongoDB.URI = val
	}
	if val := viper.GetString("MONGODB_DATABASE"); val != "" {
		config.MongoDB.Database = val
	}

	if val := viper.GetString("REDIS_ADDRESS"); val != "" {
		config.Redis.Address = val
	}
	if val := viper.GetString("REDIS_PASSWORD"); val != "" {
		config.Redis.Password = val
	}

	if val := viper.GetString("KAFKA_BROKERS"); val != "" {
		config.Kafka.Brokers = strings.Split(val, ",")
	}

	if val := viper.GetString("VAULT_ADDRESS"); val != "" {
		config.Vault.Address = val
	}
	if val := viper.GetString("VAULT_TOKEN"); val != "" {
		config.Vault.Token = val
	}
	if val := viper.GetString("VAULT_ROLE_ID"); val != "" {
		config.Vault.RoleID = val
	}
	if val := viper.GetString("VAULT_SECRET_ID"); val != "" {
		config.Vault.SecretID = val
	}
	if val := viper.GetString("VAULT_NAMESPACE"); val != "" {
		config.Vault.Namespace = val
	}

	if val := viper.GetString("CRUD_DEFINITIONS_FOLDER"); val != "" {
		config.Crud.DefinitionsFolder = val
	}
}

// Validate는 필수 설정값을 검증합니다
func (c *Config) Validate() error {
	if c.MongoDB.URI == "" {
		return fmt.Errorf("mongodb.uri is required")
	}
	if c.MongoDB.Database == "" {
		return fmt.Errorf("mongodb.database is required")
	}
	if c.Crud.DefinitionsFolder == "" {
		return fmt.Errorf("crud.definitions_folder is required")
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Vault.Enabled && c.Vault.Address == "" {
		return fmt.Errorf("vault.address is required when vault is enabled")
	}
	return nil
}
