package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultGraphBaseURL = "https://graph.facebook.com/v20.0"
	DefaultMongoURI     = "mongodb://127.0.0.1:27017"
	DefaultMongoDB      = "chathub"
	DefaultBucket       = "imgbrain"
	DefaultRegion       = "us-east-1"
	DefaultDisplayZone  = "America/Bogota"
	DefaultDedupTTL     = "1h"
	DefaultSweepSpec    = "@every 10m"
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Meta    MetaConfig    `toml:"meta"`
	Mongo   MongoConfig   `toml:"mongo"`
	Storage StorageConfig `toml:"storage"`
	Relay   RelayConfig   `toml:"relay"`
	Dedup   DedupConfig   `toml:"dedup"`
	Time    TimeConfig    `toml:"time"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// MetaConfig holds Graph API credentials shared by the webhook and the senders.
type MetaConfig struct {
	GraphBaseURL    string `toml:"graph_base_url"`
	VerifyToken     string `toml:"verify_token"`
	WhatsAppToken   string `toml:"whatsapp_token"`
	PhoneNumberID   string `toml:"phone_number_id"`
	PageAccessToken string `toml:"page_access_token"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

type StorageConfig struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// RelayConfig configures best-effort forwarding of inbound events to an
// external automation endpoint. An empty URL disables the relay for that platform.
type RelayConfig struct {
	WhatsAppURL    string `toml:"whatsapp_url"`
	InstagramURL   string `toml:"instagram_url"`
	MessengerURL   string `toml:"messenger_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type DedupConfig struct {
	TTL       string `toml:"ttl"`
	SweepSpec string `toml:"sweep_spec"`
}

// TimeConfig selects the zone used when rendering timestamps at the API
// boundary. Storage is always UTC.
type TimeConfig struct {
	DisplayZone string `toml:"display_zone"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Meta: MetaConfig{
			GraphBaseURL:   DefaultGraphBaseURL,
			TimeoutSeconds: 10,
		},
		Mongo: MongoConfig{
			URI:      DefaultMongoURI,
			Database: DefaultMongoDB,
		},
		Storage: StorageConfig{
			Bucket: DefaultBucket,
			Region: DefaultRegion,
		},
		Relay: RelayConfig{
			TimeoutSeconds: 5,
		},
		Dedup: DedupConfig{
			TTL:       DefaultDedupTTL,
			SweepSpec: DefaultSweepSpec,
		},
		Time: TimeConfig{
			DisplayZone: DefaultDisplayZone,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// PublicBaseURL returns the public URL prefix for objects in the configured bucket.
func (s StorageConfig) PublicBaseURL() string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.Bucket, s.Region)
}
