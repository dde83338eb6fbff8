// Package config loads the connector's runtime configuration from a YAML
// file plus environment variable overrides, grounded on the teacher's
// pkg/config/config.go viper+mapstructure loader. Unlike the teacher, Load
// returns an owned *Config rather than populating a package-level global
// (spec.md §9 DESIGN NOTES: no component acquires config from a module-level
// registry).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/alldoizcode/connector/internal/errs"
)

// PeerConfig is one entry of the consumed peer configuration (spec.md §6).
type PeerConfig struct {
	ID     string `mapstructure:"id" json:"id"`
	URL    string `mapstructure:"url" json:"url"`
	Secret string `mapstructure:"-" json:"-"` // populated from BTP_PEER_<ID>_SECRET, never from the file
}

// RouteConfig is one entry of the consumed route configuration (spec.md §6).
type RouteConfig struct {
	Prefix   string `mapstructure:"prefix" json:"prefix"`
	NextHop  string `mapstructure:"next_hop" json:"next_hop"`
	Priority int    `mapstructure:"priority" json:"priority"`
}

// Config is the connector's unified runtime configuration.
type Config struct {
	SelfAddress string `mapstructure:"self_address" json:"self_address"`

	BTP struct {
		ServerPort int `mapstructure:"server_port" json:"server_port"`
	} `mapstructure:"btp" json:"btp"`

	Forwarding struct {
		FeeRatePermil      uint64 `mapstructure:"fee_rate_permil" json:"fee_rate_permil"`
		MinForwardedAmount uint64 `mapstructure:"min_forwarded_amount" json:"min_forwarded_amount"`
		MaxHoldTimeMS      int    `mapstructure:"max_hold_time_ms" json:"max_hold_time_ms"`
		MinHoldTimeMS      int    `mapstructure:"min_hold_time_ms" json:"min_hold_time_ms"`
	} `mapstructure:"forwarding" json:"forwarding"`

	Messaging struct {
		Enabled        bool `mapstructure:"enabled" json:"enabled"`
		GatewayPort    int  `mapstructure:"gateway_port" json:"gateway_port"`
		WebSocketPort  int  `mapstructure:"websocket_port" json:"websocket_port"`
		SubscriptionCap int `mapstructure:"subscription_cap" json:"subscription_cap"`
	} `mapstructure:"messaging" json:"messaging"`

	Admin struct {
		HTTPEnabled bool `mapstructure:"http_enabled" json:"http_enabled"`
	} `mapstructure:"admin" json:"admin"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`

	Peers  []PeerConfig  `mapstructure:"peers" json:"peers"`
	Routes []RouteConfig `mapstructure:"routes" json:"routes"`
}

const peerSecretEnvPrefix = "BTP_PEER_"
const peerSecretEnvSuffix = "_SECRET"

// Load reads configFile (YAML, optional) via an owned viper instance, loads
// a sibling .env file if present via godotenv, then layers environment
// variable overrides recognized per spec.md §6
// (BTP_SERVER_PORT, BTP_PEER_<PEER_ID>_SECRET, ENABLE_PRIVATE_MESSAGING,
// MESSAGING_GATEWAY_PORT, MESSAGING_WEBSOCKET_PORT, ADMIN_HTTP_ENABLED).
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errs.Wrap(err, "config: load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("btp.server_port", 3000)
	v.SetDefault("forwarding.fee_rate_permil", 1000)
	v.SetDefault("forwarding.min_forwarded_amount", 1)
	v.SetDefault("forwarding.max_hold_time_ms", 30_000)
	v.SetDefault("forwarding.min_hold_time_ms", 500)
	v.SetDefault("messaging.subscription_cap", 10)
	v.SetDefault("logging.level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("config: read %s", configFile))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(err, "config: unmarshal")
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if p, ok := os.LookupEnv("BTP_SERVER_PORT"); ok {
		if n, err := strconv.Atoi(p); err == nil {
			cfg.BTP.ServerPort = n
		}
	}
	if v, ok := os.LookupEnv("ENABLE_PRIVATE_MESSAGING"); ok {
		cfg.Messaging.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if p, ok := os.LookupEnv("MESSAGING_GATEWAY_PORT"); ok {
		if n, err := strconv.Atoi(p); err == nil {
			cfg.Messaging.GatewayPort = n
		}
	}
	if p, ok := os.LookupEnv("MESSAGING_WEBSOCKET_PORT"); ok {
		if n, err := strconv.Atoi(p); err == nil {
			cfg.Messaging.WebSocketPort = n
		}
	}
	if v, ok := os.LookupEnv("ADMIN_HTTP_ENABLED"); ok {
		cfg.Admin.HTTPEnabled = v == "1" || strings.EqualFold(v, "true")
	}

	for i := range cfg.Peers {
		envName := peerSecretEnvPrefix + sanitizeEnvSegment(cfg.Peers[i].ID) + peerSecretEnvSuffix
		if secret, ok := os.LookupEnv(envName); ok {
			cfg.Peers[i].Secret = secret
		}
	}
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if !strings.HasPrefix(parts[0], peerSecretEnvPrefix) || !strings.HasSuffix(parts[0], peerSecretEnvSuffix) {
			continue
		}
		peerID := strings.TrimSuffix(strings.TrimPrefix(parts[0], peerSecretEnvPrefix), peerSecretEnvSuffix)
		if !peerConfigured(cfg, peerID) {
			cfg.Peers = append(cfg.Peers, PeerConfig{ID: peerID, Secret: parts[1]})
		}
	}
}

func peerConfigured(cfg *Config, peerID string) bool {
	for _, p := range cfg.Peers {
		if sanitizeEnvSegment(p.ID) == peerID {
			return true
		}
	}
	return false
}

// sanitizeEnvSegment uppercases and replaces characters illegal in an env
// var name (ILP peer ids commonly contain '.' and '-') with underscores.
func sanitizeEnvSegment(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, s)
}
