package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env     string
	Port    int
	DBURL   string
	DBMaxConns int

	AppName string

	AltegioWebhookSecret string

	WhatsAppProvider         string
	AllowRealSend            bool
	StopWorkerOnTokenExpired bool

	WhatsAppAccessToken      string
	MetaPhoneNumberID        string
	WhatsAppGraphURL         string
	WhatsAppAPIVersion       string
	WhatsAppWebhookVerifyToken string

	AltegioAPIBaseURL    string
	AltegioAPIAccept     string
	AltegioPartnerToken  string
	AltegioUserToken     string

	AdminAPIToken string

	BusinessTimezone string
	UnsubscribeLinkBase string

	ReconcileBatchSize   int
	ReconcilePollInterval time.Duration

	OutboxBatchSize     int
	OutboxPollInterval  time.Duration
	OutboxConcurrency   int
	OutboxShutdownGrace time.Duration
	OutboxStaleLeaseTTL time.Duration

	HealthAddr string
}

func Load() Config {
	return Config{
		Env:     getEnv("APP_ENV", "dev"),
		Port:    getEnvInt("PORT", 8080),
		DBURL:   buildDBURL(),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		AppName: getEnv("APP_NAME", "whatsflow"),

		AltegioWebhookSecret: getEnv("ALTEGIO_WEBHOOK_SECRET", ""),

		WhatsAppProvider:         getEnv("WHATSAPP_PROVIDER", "dummy"),
		AllowRealSend:            getEnvBool("ALLOW_REAL_SEND", false),
		StopWorkerOnTokenExpired: getEnvBool("STOP_WORKER_ON_TOKEN_EXPIRED", false),

		WhatsAppAccessToken:        getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		MetaPhoneNumberID:          getEnv("META_WA_PHONE_NUMBER_ID", ""),
		WhatsAppGraphURL:           getEnv("WHATSAPP_GRAPH_URL", "https://graph.facebook.com"),
		WhatsAppAPIVersion:         getEnv("WHATSAPP_API_VERSION", "v20.0"),
		WhatsAppWebhookVerifyToken: getEnv("WHATSAPP_WEBHOOK_VERIFY_TOKEN", ""),

		AltegioAPIBaseURL:   getEnv("ALTEGIO_API_BASE_URL", "https://api.alteg.io/api/v1"),
		AltegioAPIAccept:    getEnv("ALTEGIO_API_ACCEPT", "application/vnd.api.v2+json"),
		AltegioPartnerToken: getEnv("ALTEGIO_PARTNER_TOKEN", ""),
		AltegioUserToken:    getEnv("ALTEGIO_USER_TOKEN", ""),

		AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),

		BusinessTimezone:    getEnv("BUSINESS_TIMEZONE", "Europe/Berlin"),
		UnsubscribeLinkBase: getEnv("UNSUBSCRIBE_LINK_BASE", "https://example.com/unsubscribe"),

		ReconcileBatchSize:    getEnvInt("RECONCILE_BATCH_SIZE", 50),
		ReconcilePollInterval: getEnvDuration("RECONCILE_POLL_INTERVAL", time.Second),

		OutboxBatchSize:     getEnvInt("OUTBOX_BATCH_SIZE", 50),
		OutboxPollInterval:  getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxConcurrency:   getEnvInt("OUTBOX_CONCURRENCY", 4),
		OutboxShutdownGrace: getEnvDuration("OUTBOX_SHUTDOWN_GRACE", 10*time.Second),
		OutboxStaleLeaseTTL: getEnvDuration("OUTBOX_STALE_LEASE_TTL", 10*time.Minute),

		HealthAddr: getEnv("HEALTH_ADDR", ":8081"),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "whatsflow")
	pass := getEnv("DB_PASSWORD", "whatsflow")
	name := getEnv("DB_NAME", "whatsflow")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Println(err)
			return fallback
		}
		return d
	}
	return fallback
}
