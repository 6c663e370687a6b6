// config/config.go
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --- Các struct con, phản ánh cấu trúc của YAML ---

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type MongoConfig struct {
	URI     string        `mapstructure:"uri"`
	DBName  string        `mapstructure:"dbName"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type StorageConfig struct {
	// Driver là "mongo" hoặc "memory".
	Driver string `mapstructure:"driver"`
	// SeedFile là file JSON tài xế/người dùng nạp vào directory khi driver=memory.
	SeedFile string `mapstructure:"seedFile"`
}

type PickupsConfig struct {
	// DelayedAfter: pickup pending lâu hơn khoảng này được tính là trễ.
	DelayedAfter time.Duration `mapstructure:"delayedAfter"`
}

type CodesConfig struct {
	DefaultTTL time.Duration `mapstructure:"defaultTTL"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `mapstructure:"pingInterval"`
	PongWait     time.Duration `mapstructure:"pongWait"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"accessKeyID"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	Prefix          string `mapstructure:"prefix"`
}

// Enabled reports whether purge archiving to S3 is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// --- Struct Config chính, bao gồm tất cả các struct con ---

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Pickups   PickupsConfig   `mapstructure:"pickups"`
	Codes     CodesConfig     `mapstructure:"codes"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	S3        S3Config        `mapstructure:"s3"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "safe_pickup")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("pickups.delayedAfter", 15*time.Minute)
	v.SetDefault("codes.defaultTTL", 24*time.Hour)
	v.SetDefault("websocket.pingInterval", 25*time.Second)
	v.SetDefault("websocket.pongWait", 60*time.Second)
	v.SetDefault("websocket.writeTimeout", 10*time.Second)
	v.SetDefault("websocket.sendBuffer", 64)
	v.SetDefault("s3.prefix", "pickup-archive")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig đọc cấu hình từ file và ghi đè bằng các biến môi trường.
// File .env trong thư mục path (nếu có) được nạp vào môi trường trước.
func LoadConfig(path string) (config Config, err error) {
	if err = godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	// Ví dụ: key "mongo.uri" trong YAML được ánh xạ tới biến môi trường "MONGO_URI"
	v.AutomaticEnv()
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.dbName", "MONGO_DBNAME")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.seedFile", "STORAGE_SEED_FILE")
	v.BindEnv("pickups.delayedAfter", "PICKUPS_DELAYED_AFTER")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.prefix", "S3_PREFIX")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")

	// Nếu file không tồn tại, chỉ dùng giá trị mặc định và biến môi trường.
	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Validate()
	return
}

// Validate kiểm tra các giá trị không thể dùng được.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "mongo", "memory":
	default:
		return errors.New("storage.driver must be \"mongo\" or \"memory\"")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return errors.New("websocket.sendBuffer must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return errors.New("websocket.pingInterval must be shorter than websocket.pongWait")
	}
	return nil
}
