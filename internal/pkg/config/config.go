package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	App      AppConfig      `mapstructure:"app"`
	CheckIn  CheckInConfig  `mapstructure:"checkin"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Kiosk    KioskConfig    `mapstructure:"kiosk"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// DSN 返回 golang-migrate 使用的 URL 形式连接串
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	TimeZone string `mapstructure:"timezone"` // 俱乐部所在时区，会员卡按当地自然日计算
}

// Location 解析俱乐部时区，未配置时使用 UTC
func (c AppConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// CheckInConfig 入场码相关配置
type CheckInConfig struct {
	TokenTTL        time.Duration `mapstructure:"token_ttl"`        // 入场码有效期
	RefreshCooldown time.Duration `mapstructure:"refresh_cooldown"` // 签发后多久内重复请求返回同一个码
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`   // 过期码清理周期
	SweepRetention  time.Duration `mapstructure:"sweep_retention"`  // 过期后保留多久再删除
}

type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	MaxAuthAge time.Duration `mapstructure:"max_auth_age"` // initData 最大有效期，0 表示不校验
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// KioskConfig 前台扫码终端配置
type KioskConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	StaffToken     string        `mapstructure:"staff_token"`
	ScanCooldown   time.Duration `mapstructure:"scan_cooldown"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	// JWT 配置验证
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	// 数据库配置验证
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	// Redis 配置验证
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if _, err := c.App.Location(); err != nil {
		return errors.New("app.timezone is not a valid IANA time zone")
	}

	// 入场码配置验证
	if c.CheckIn.TokenTTL <= 0 {
		return errors.New("checkin.token_ttl must be positive")
	}
	if c.CheckIn.RefreshCooldown < 0 || c.CheckIn.RefreshCooldown >= c.CheckIn.TokenTTL {
		return errors.New("checkin.refresh_cooldown must be within [0, token_ttl)")
	}

	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("jwt.expire", 24)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("checkin.token_ttl", 300*time.Second)
	v.SetDefault("checkin.refresh_cooldown", 60*time.Second)
	v.SetDefault("checkin.sweep_interval", 10*time.Minute)
	v.SetDefault("checkin.sweep_retention", 24*time.Hour)
	v.SetDefault("telegram.max_auth_age", 24*time.Hour)
	v.SetDefault("kiosk.base_url", "http://localhost:8080")
	v.SetDefault("kiosk.staff_token", "")
	v.SetDefault("kiosk.scan_cooldown", 1500*time.Millisecond)
	v.SetDefault("kiosk.request_timeout", 10*time.Second)
}

// Load 读取配置文件与环境变量，不做校验
func Load() (Config, error) {
	// .env 只在本地开发时存在，找不到不算错误
	_ = godotenv.Load()

	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量，例如 CHECKIN_TOKEN_TTL=300s
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}
	if botToken := os.Getenv("TELEGRAM_BOT_TOKEN"); botToken != "" {
		cfg.Telegram.BotToken = botToken
	}

	return cfg, nil
}

// LoadConfig 加载配置
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	GlobalConfig = cfg

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
