// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	MinIO        MinIOConfig        `mapstructure:"minio"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	ChatAPI      ChatAPIConfig      `mapstructure:"chat_api"`
	CommunityAPI CommunityAPIConfig `mapstructure:"community_api"`
	Chat         ChatConfig         `mapstructure:"chat"`
	UI           UIConfig           `mapstructure:"ui"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port                   string `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	// SecureCookies 控制 Set-Cookie 的 Secure 标志，HTTPS 部署时应打开。
	SecureCookies bool `mapstructure:"secure_cookies"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig 选择状态存储的实现："redis" 用于部署，"memory" 用于本地开发。
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	// StateTTLHours 是草稿和“最近会话”记录的保留时间。
	StateTTLHours int `mapstructure:"state_ttl_hours"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	CookieName             string `mapstructure:"cookie_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时草稿图片只保存在内存中。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	DraftPrefix     string `mapstructure:"draft_prefix"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布领域事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ChatAPIConfig 描述远端问答服务。路径中的 {session_id} 会被替换。
type ChatAPIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	HistoryPath    string `mapstructure:"history_path"`
	SendPath       string `mapstructure:"send_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CommunityAPIConfig 描述远端社区（发帖）服务。
type CommunityAPIConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	CreatePath     string   `mapstructure:"create_path"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	CSRFCookie     string   `mapstructure:"csrf_cookie"`
	CSRFHeader     string   `mapstructure:"csrf_header"`
	ForwardCookies []string `mapstructure:"forward_cookies"`
}

// ChatConfig 存储聊天页面的固定文案与并发控制参数。
type ChatConfig struct {
	Title             string `mapstructure:"title"`
	Greeting          string `mapstructure:"greeting"`
	ErrorText         string `mapstructure:"error_text"`
	LoadingText       string `mapstructure:"loading_text"`
	InFlightTTLSecond int    `mapstructure:"in_flight_ttl_seconds"`
	ViewTTLHours      int    `mapstructure:"view_ttl_hours"`
}

// UIConfig 存储页面渲染相关的配置。
type UIConfig struct {
	Timezone      string `mapstructure:"timezone"`
	RenderWindow  int    `mapstructure:"render_window"`
	AssistantIcon string `mapstructure:"assistant_icon"`
	UserIcon      string `mapstructure:"user_icon"`
	ModalTTLMins  int    `mapstructure:"modal_ttl_minutes"`
}

// Timeout 返回问答服务的请求超时。
func (c ChatAPIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout 返回社区服务的请求超时。
func (c CommunityAPIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InFlightTTL 返回单个会话“请求进行中”槽位的最长持有时间。
func (c ChatConfig) InFlightTTL() time.Duration {
	return time.Duration(c.InFlightTTLSecond) * time.Second
}

// StateTTL 返回草稿和最近会话记录的保留时间。
func (c StorageConfig) StateTTL() time.Duration {
	return time.Duration(c.StateTTLHours) * time.Hour
}

// ViewTTL 返回聊天视图在存储中的保留时间。
func (c ChatConfig) ViewTTL() time.Duration {
	return time.Duration(c.ViewTTLHours) * time.Hour
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout_seconds", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.driver", "redis")
	v.SetDefault("storage.state_ttl_hours", 168)
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("jwt.cookie_name", "agrichat_token")
	v.SetDefault("minio.bucket_name", "agrichat-drafts")
	v.SetDefault("minio.draft_prefix", "drafts")
	v.SetDefault("kafka.topic", "agrichat.events")
	v.SetDefault("chat_api.base_url", "http://localhost:8000")
	v.SetDefault("chat_api.history_path", "/chatbot/history/{session_id}/")
	v.SetDefault("chat_api.send_path", "/chatbot/chat/")
	v.SetDefault("chat_api.timeout_seconds", 60)
	v.SetDefault("community_api.base_url", "http://localhost:8000")
	v.SetDefault("community_api.create_path", "/community/post/create/")
	v.SetDefault("community_api.timeout_seconds", 30)
	v.SetDefault("community_api.csrf_cookie", "csrftoken")
	v.SetDefault("community_api.csrf_header", "X-CSRFToken")
	v.SetDefault("community_api.forward_cookies", []string{"csrftoken", "sessionid"})
	v.SetDefault("chat.title", "농업 GPT")
	v.SetDefault("chat.greeting", "안녕하세요 무엇을 도와드릴까요?")
	v.SetDefault("chat.error_text", "An error occurred. Please try again later.")
	v.SetDefault("chat.loading_text", "답변을 불러오는 중입니다.")
	v.SetDefault("chat.in_flight_ttl_seconds", 120)
	v.SetDefault("chat.view_ttl_hours", 24)
	v.SetDefault("ui.timezone", "Asia/Seoul")
	v.SetDefault("ui.render_window", 0)
	v.SetDefault("ui.assistant_icon", "/static/assistant.svg")
	v.SetDefault("ui.user_icon", "/static/user.svg")
	v.SetDefault("ui.modal_ttl_minutes", 30)
}

// Load 从指定路径读取 YAML 文件，叠加默认值与 AGRICHAT_ 前缀的环境变量。
// configPath 为空时只使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AGRICHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，结果保存在 Conf 变量中。失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
