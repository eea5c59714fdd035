package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	MongoDriver  = "mongodb"
	RedisDriver  = "redis"
	BoltDriver   = "boltdb"
	DynamoDriver = "dynamodb"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit          string        `yaml:"git_commit" envconfig:"BOOKS_GIT_COMMIT" json:"git_commit"`
	GitTag             string        `yaml:"git_tag" envconfig:"BOOKS_GIT_TAG" json:"git_tag"`
	BuildTime          string        `yaml:"build_time" envconfig:"BOOKS_BUILD_TIME" json:"build_time"`
	IsProduction       bool          `yaml:"is_production" envconfig:"BOOKS_IS_PRODUCTION" json:"is_production"`
	LogLevel           zapcore.Level `yaml:"log_level" envconfig:"BOOKS_LOG_LEVEL" json:"log_level"`
	LogFolder          string        `yaml:"log_folder" envconfig:"BOOKS_LOG_FOLDER" json:"log_folder"`
	LogMaxSize         int           `yaml:"log_max_size" envconfig:"BOOKS_LOG_MAX_SIZE" json:"log_max_size"`
	ProfilerEnable     bool          `yaml:"profiler_enable" envconfig:"BOOKS_PROFILER_ENABLE" json:"profiler_enable"`
	OpsEndpointsEnable bool          `yaml:"ops_endpoints_enable" envconfig:"BOOKS_OPS_ENDPOINTS_ENABLE" json:"ops_endpoints_enable"`
	Server             ServerConfig  `yaml:"server" json:"server"`
	Storage            StorageConfig `yaml:"storage" json:"storage"`
	MongoDB            MongoDBConfig `yaml:"mongodb" json:"mongodb"`
	Redis              RedisConfig   `yaml:"redis" json:"redis"`
	BoltDB             BoltDBConfig  `yaml:"boltdb" json:"boltdb"`
	DynamoDB           DynamoConfig  `yaml:"dynamodb" json:"dynamodb"`
	Mirror             MirrorConfig  `yaml:"mirror" json:"mirror"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"BOOKS_SERVER_HOST" json:"host"`
	Port            string        `yaml:"port" envconfig:"BOOKS_SERVER_PORT" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"BOOKS_SERVER_READ_TIMEOUT" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"BOOKS_SERVER_WRITE_TIMEOUT" json:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"BOOKS_SERVER_REQUEST_TIMEOUT" json:"request_timeout"` // Time to wait for a request to finish
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"BOOKS_SERVER_SHUTDOWN_TIMEOUT" json:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"BOOKS_STORAGE_DRIVER" json:"driver"`
}

type MongoDBConfig struct {
	URI            string        `yaml:"uri" envconfig:"BOOKS_MONGODB_URI" json:"-"`
	Database       string        `yaml:"database" envconfig:"BOOKS_MONGODB_DATABASE" json:"database"`
	Collection     string        `yaml:"collection" envconfig:"BOOKS_MONGODB_COLLECTION" json:"collection"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"BOOKS_MONGODB_CONNECT_TIMEOUT" json:"connect_timeout"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"BOOKS_REDIS_HOST" json:"host"`
	Port          string        `yaml:"port" envconfig:"BOOKS_REDIS_PORT" json:"port"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"BOOKS_REDIS_DIAL_TIMEOUT" json:"dial_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"BOOKS_REDIS_READ_TIMEOUT" json:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"BOOKS_REDIS_WRITE_TIMEOUT" json:"write_timeout"`
	PoolSize      int           `yaml:"pool_size" envconfig:"BOOKS_REDIS_POOL_SIZE" json:"pool_size"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"BOOKS_REDIS_POOL_TIMEOUT" json:"pool_timeout"`
	Username      string        `yaml:"username" envconfig:"BOOKS_REDIS_USERNAME" json:"-"`
	Password      string        `yaml:"password" envconfig:"BOOKS_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"BOOKS_REDIS_DATABASE_INDEX" json:"db_index"`
	HashKey       string        `yaml:"hash_key" envconfig:"BOOKS_REDIS_HASH_KEY" json:"hash_key"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"BOOKS_BOLTDB_FILE_PATH" json:"filepath"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"BOOKS_BOLTDB_TIMEOUT" json:"timeout"`
	BucketName string        `yaml:"bucket_name" envconfig:"BOOKS_BOLTDB_BUCKET_NAME" json:"bucket_name"`
}

type DynamoConfig struct {
	Region          string `yaml:"region" envconfig:"BOOKS_DYNAMODB_REGION" json:"region"`
	Endpoint        string `yaml:"endpoint" envconfig:"BOOKS_DYNAMODB_ENDPOINT" json:"endpoint"`
	TableName       string `yaml:"table_name" envconfig:"BOOKS_DYNAMODB_TABLE_NAME" json:"table_name"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"BOOKS_DYNAMODB_ACCESS_KEY_ID" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"BOOKS_DYNAMODB_SECRET_ACCESS_KEY" json:"-"`
}

type MirrorConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"BOOKS_MIRROR_ENABLED" json:"enabled"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 100
	}

	if config.Redis.HashKey == "" {
		config.Redis.HashKey = HBooks
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = MongoDriver
	}

	switch config.Storage.Driver {
	case MongoDriver:
		if len(config.MongoDB.URI) == 0 || len(config.MongoDB.Database) == 0 || len(config.MongoDB.Collection) == 0 {
			return errors.New("make sure to set valid mongodb uri, database and collection in configuration file")
		}
	case RedisDriver:
		if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
			return errors.New("make sure to set valid redis address and port in configuration file")
		}
	case BoltDriver:
		if len(config.BoltDB.FilePath) == 0 || len(config.BoltDB.BucketName) == 0 {
			return errors.New("make sure to set valid boltdb file path and bucket name in configuration file")
		}
	case DynamoDriver:
		if len(config.DynamoDB.Region) == 0 || len(config.DynamoDB.TableName) == 0 {
			return errors.New("make sure to set valid dynamodb region and table name in configuration file")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}

	if config.Mirror.Enabled {
		if config.Storage.Driver == BoltDriver {
			return errors.New("mirror cannot be enabled with the boltdb storage driver")
		}
		if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
			return errors.New("make sure to set valid redis address and port to use the mirror")
		}
		if len(config.BoltDB.FilePath) == 0 || len(config.BoltDB.BucketName) == 0 {
			return errors.New("make sure to set valid boltdb file path and bucket name to use the mirror")
		}
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration.
	err = godotenv.Load("./config.env")
	if err != nil {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `BOOKS`.
	err = LoadConfigEnvs("BOOKS", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
