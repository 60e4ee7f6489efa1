// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Session       SessionConfig       `mapstructure:"session"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Chat          ChatConfig          `mapstructure:"chat"`
	EmailJS       EmailJSConfig       `mapstructure:"emailjs"`
	Hospital      HospitalConfig      `mapstructure:"hospital"`
	Widget        WidgetConfig        `mapstructure:"widget"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
// Driver 取值 "mysql"（默认）或 "mongo"，决定聊天记录与预约的存储后端。
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	MySQL  MySQLConfig `mapstructure:"mysql"`
	Mongo  MongoConfig `mapstructure:"mongo"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MongoConfig 存储 MongoDB 文档数据库的配置。
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时会话快照只保存在内存中。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig 存储访客会话令牌与快照的配置。
type SessionConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
	SnapshotTTLHours int    `mapstructure:"snapshot_ttl_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时预约通知直接发送，不经过队列。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。Addresses 为空时不启用全文检索。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不提供导出功能。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChatConfig 存储对话流程相关的配置。
type ChatConfig struct {
	HistoryWindow int  `mapstructure:"history_window"`
	MedicalGuard  bool `mapstructure:"medical_guard"`
}

// EmailJSConfig 存储预约邮件通知所需的 EmailJS 凭证。
type EmailJSConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	ServiceID   string `mapstructure:"service_id"`
	TemplateID  string `mapstructure:"template_id"`
	PublicKey   string `mapstructure:"public_key"`
	AccessToken string `mapstructure:"access_token"`
}

// HospitalConfig 允许在配置文件中覆盖内置的演示医院资料。
// HospitalID 为空时使用内置资料。
type HospitalConfig struct {
	HospitalID       string              `mapstructure:"hospital_id"`
	HospitalName     string              `mapstructure:"hospital_name"`
	Departments      []string            `mapstructure:"departments"`
	ConsultationFees []ConsultationEntry `mapstructure:"consultation_fees"`
	Timings          string              `mapstructure:"timings"`
	EmergencyContact string              `mapstructure:"emergency_contact"`
	Facilities       []string            `mapstructure:"facilities"`
	Address          string              `mapstructure:"address"`
	Email            string              `mapstructure:"email"`
}

// ConsultationEntry 以列表形式描述科室费用（viper 会把 map 的键转为小写，因此不用 map）。
type ConsultationEntry struct {
	Department string `mapstructure:"department"`
	Fee        string `mapstructure:"fee"`
}

// WidgetConfig 是嵌入脚本在未提供 data 属性时使用的默认值。
type WidgetConfig struct {
	Position   string `mapstructure:"position"`
	Theme      string `mapstructure:"theme"`
	HospitalID string `mapstructure:"hospital_id"`
	AutoOpen   bool   `mapstructure:"auto_open"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

// TelemetryConfig 存储 OpenTelemetry 导出配置。Endpoint 为空时不导出链路数据。
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
}

// setDefaults 为所有键设置默认值，同时让 AutomaticEnv 能够识别这些键。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.mongo.uri", "")
	v.SetDefault("database.mongo.database", "medidesk")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.token_expire_hours", 24)
	v.SetDefault("session.snapshot_ttl_hours", 7*24)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "medidesk-appointment-notifications")
	v.SetDefault("kafka.group_id", "medidesk-notifier")

	v.SetDefault("elasticsearch.addresses", "")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "medidesk_chats")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "medidesk-exports")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("llm.model", "mistral-small-latest")
	v.SetDefault("llm.timeout_seconds", 0)
	v.SetDefault("llm.generation.temperature", 0.2)
	v.SetDefault("llm.generation.max_tokens", 500)

	v.SetDefault("chat.history_window", 10)
	v.SetDefault("chat.medical_guard", false)

	v.SetDefault("emailjs.base_url", "https://api.emailjs.com/api/v1.0")
	v.SetDefault("emailjs.service_id", "")
	v.SetDefault("emailjs.template_id", "")
	v.SetDefault("emailjs.public_key", "")
	v.SetDefault("emailjs.access_token", "")

	v.SetDefault("hospital.hospital_id", "")

	v.SetDefault("widget.position", "bottom-right")
	v.SetDefault("widget.theme", "blue")
	v.SetDefault("widget.hospital_id", "demo-hospital")
	v.SetDefault("widget.auto_open", false)
	v.SetDefault("widget.api_base_url", "")

	v.SetDefault("telemetry.service_name", "medidesk")
	v.SetDefault("telemetry.endpoint", "")
}

// Load 读取 .env（如果存在）与指定的 YAML 文件，并允许 MEDIDESK_ 前缀的环境变量覆盖配置。
// configPath 为空或文件不存在时仅使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MEDIDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.Database.Driver != "mysql" && cfg.Database.Driver != "mongo" {
		return nil, fmt.Errorf("不支持的数据库驱动: %q", cfg.Database.Driver)
	}
	return &cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}
