package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Log      LogConfig
	LLM      LLMConfig
	Workflow WorkflowConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	Type            string        // "local" or "s3"
	BaseDir         string        // For local: "./runs-data"
	S3Bucket        string        // For S3: bucket name
	S3Region        string        // For S3: AWS region
	S3PresignExpiry time.Duration // Presigned URL expiration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// LLMConfig holds model provider configuration.
type LLMConfig struct {
	Provider      string // "bedrock" or "openai"
	BedrockRegion string
	BedrockModel  string
	MaxTokens     int
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// WorkflowConfig holds test workflow configuration.
type WorkflowConfig struct {
	MaxAttempts          int
	StageTimeout         time.Duration
	Framework            string
	WorkRoot             string
	PytestPath           string
	ExecTimeout          time.Duration
	MaxConcurrentWorkers int
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "testpilot")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_dir", "./runs-data")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_presign_expiry", "15m")

	v.SetDefault("log.level", "info")

	v.SetDefault("llm.provider", "bedrock")
	v.SetDefault("llm.bedrock_region", "us-east-1")
	v.SetDefault("llm.bedrock_model", "anthropic.claude-sonnet-4-6")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.openai_model", "gpt-4o")

	v.SetDefault("workflow.max_attempts", 3)
	v.SetDefault("workflow.stage_timeout", "2m")
	v.SetDefault("workflow.framework", "playwright")
	v.SetDefault("workflow.work_root", "./artifacts")
	v.SetDefault("workflow.pytest_path", "pytest")
	v.SetDefault("workflow.exec_timeout", "5m")
	v.SetDefault("workflow.max_concurrent_workers", 1)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults
	}

	// Parse configuration
	var config Config

	config.Server.Host = v.GetString("server.host")
	config.Server.Port = v.GetInt("server.port")
	config.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	config.Server.WriteTimeout = v.GetDuration("server.write_timeout")

	config.Database.Driver = v.GetString("database.driver")
	config.Database.Host = v.GetString("database.host")
	config.Database.Port = v.GetInt("database.port")
	config.Database.User = v.GetString("database.user")
	config.Database.Password = v.GetString("database.password")
	config.Database.Database = v.GetString("database.database")
	config.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	config.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")

	config.Storage.Type = v.GetString("storage.type")
	config.Storage.BaseDir = v.GetString("storage.base_dir")
	config.Storage.S3Bucket = v.GetString("storage.s3_bucket")
	config.Storage.S3Region = v.GetString("storage.s3_region")
	config.Storage.S3PresignExpiry = v.GetDuration("storage.s3_presign_expiry")

	config.Log.Level = v.GetString("log.level")

	config.LLM.Provider = v.GetString("llm.provider")
	config.LLM.BedrockRegion = v.GetString("llm.bedrock_region")
	config.LLM.BedrockModel = v.GetString("llm.bedrock_model")
	config.LLM.MaxTokens = v.GetInt("llm.max_tokens")
	config.LLM.OpenAIAPIKey = v.GetString("llm.openai_api_key")
	config.LLM.OpenAIBaseURL = v.GetString("llm.openai_base_url")
	config.LLM.OpenAIModel = v.GetString("llm.openai_model")

	config.Workflow.MaxAttempts = v.GetInt("workflow.max_attempts")
	config.Workflow.StageTimeout = v.GetDuration("workflow.stage_timeout")
	config.Workflow.Framework = v.GetString("workflow.framework")
	config.Workflow.WorkRoot = v.GetString("workflow.work_root")
	config.Workflow.PytestPath = v.GetString("workflow.pytest_path")
	config.Workflow.ExecTimeout = v.GetDuration("workflow.exec_timeout")
	config.Workflow.MaxConcurrentWorkers = v.GetInt("workflow.max_concurrent_workers")

	return &config, nil
}
