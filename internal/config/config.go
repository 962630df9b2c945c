package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	LogLevel   string        `mapstructure:"log_level"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	WSPath     string        `mapstructure:"ws_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	JoinRate   float64       `mapstructure:"join_rate"`
	JoinBurst  int           `mapstructure:"join_burst"`
	TLS        TLS           `mapstructure:"tls"`
	Media      Media         `mapstructure:"media"`
}

type TLS struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (t TLS) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

type Media struct {
	Engine           string        `mapstructure:"engine"`
	KurentoURL       string        `mapstructure:"kurento_url"`
	KurentoPing      time.Duration `mapstructure:"kurento_ping"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	MaxRecvBandwidth int           `mapstructure:"max_recv_bandwidth"`
	MinRecvBandwidth int           `mapstructure:"min_recv_bandwidth"`
	ICEServers       []string      `mapstructure:"ice_servers"`
	UDPPortMin       uint16        `mapstructure:"udp_port_min"`
	UDPPortMax       uint16        `mapstructure:"udp_port_max"`
}

const (
	EngineKurento = "kurento"
	EnginePion    = "pion"
	EngineMemory  = "memory"
)

func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8443)
	v.SetDefault("static_path", "./web")
	v.SetDefault("ws_path", "/groupcall")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "")
	v.SetDefault("join_rate", 1.0)
	v.SetDefault("join_burst", 5)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("media.engine", EngineKurento)
	v.SetDefault("media.kurento_url", "ws://localhost:8888/kurento")
	v.SetDefault("media.kurento_ping", "4m")
	v.SetDefault("media.call_timeout", "10s")
	v.SetDefault("media.max_recv_bandwidth", 300)
	v.SetDefault("media.min_recv_bandwidth", 100)
	v.SetDefault("media.ice_servers", []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"})
	v.SetDefault("media.udp_port_min", 0)
	v.SetDefault("media.udp_port_max", 0)
}

// Load reads file (or config/config.$CONFIG_ENV.yaml when file is empty) on
// top of the defaults, then GROUPCALL_* environment variables. A missing
// default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("GROUPCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := file != ""
	if !explicit {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		file = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		log.Debug().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Media.Engine {
	case EngineKurento, EnginePion, EngineMemory:
	default:
		return fmt.Errorf("media.engine: unknown engine %q", c.Media.Engine)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port: %d out of range", c.Port)
	}
	if c.PingPeriod <= 0 || c.WriteWait <= 0 {
		return errors.New("ping_period and write_wait must be positive")
	}
	if c.SendBuffer <= 0 {
		return errors.New("send_buffer must be positive")
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("ws_path: %q must start with /", c.WSPath)
	}
	return nil
}
