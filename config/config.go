package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

const (
	IdentityProviderPostgres = "postgres"
	IdentityProviderGoTrue   = "gotrue"
)

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
}

// IdentityConfig selects and configures the credential store that backs
// registration and login.
type IdentityConfig struct {
	Provider    string       `mapstructure:"provider"`
	EmailDomain string       `mapstructure:"emailDomain"`
	ListPerPage int          `mapstructure:"listPerPage"`
	BcryptCost  int          `mapstructure:"bcryptCost"`
	GoTrue      GoTrueConfig `mapstructure:"gotrue"`
}

type GoTrueConfig struct {
	URL            string        `mapstructure:"url"`
	ServiceRoleKey string        `mapstructure:"serviceRoleKey"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subjectPrefix"`
}

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort     string        `mapstructure:"HTTPPort"`
		Timeout      time.Duration `mapstructure:"HTTPTimeout"`
		ReadTimeout  time.Duration `mapstructure:"readTimeout"`
		WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Identity IdentityConfig `mapstructure:"identity"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Events   struct {
		NATS NATSConfig `mapstructure:"nats"`
	} `mapstructure:"events"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
		MetricsPort string `mapstructure:"metricsPort"`
	} `mapstructure:"observability"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
	RateLimit struct {
		Requests int           `mapstructure:"requests"`
		Window   time.Duration `mapstructure:"window"`
	} `mapstructure:"rateLimit"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// MINIMARKET_IDENTITY_GOTRUE_SERVICEROLEKEY overrides identity.gotrue.serviceRoleKey
	v.SetEnvPrefix("MINIMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate fills defaults and rejects combinations the service can not run with.
func (c *Config) Validate() error {
	if c.Identity.EmailDomain == "" {
		c.Identity.EmailDomain = "demo.com"
	}
	if c.Identity.ListPerPage <= 0 {
		c.Identity.ListPerPage = 1000
	}
	switch c.Identity.Provider {
	case "":
		c.Identity.Provider = IdentityProviderPostgres
	case IdentityProviderPostgres:
	case IdentityProviderGoTrue:
		if c.Identity.GoTrue.URL == "" || c.Identity.GoTrue.ServiceRoleKey == "" {
			return fmt.Errorf("identity provider %q requires identity.gotrue.url and identity.gotrue.serviceRoleKey", c.Identity.Provider)
		}
	default:
		return fmt.Errorf("unknown identity provider %q", c.Identity.Provider)
	}
	if c.Identity.Provider == IdentityProviderPostgres && c.JWT.SecretKey == "" {
		return fmt.Errorf("identity provider %q requires jwt.secretKey to sign sessions", c.Identity.Provider)
	}
	if c.JWT.AccessTokenTTL <= 0 {
		c.JWT.AccessTokenTTL = time.Hour
	}
	return nil
}
