package global

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the gateway needs at bootstrap. Values come
// from the environment with safe defaults for local development.
type Config struct {
	ListenAddr string
	GatewayID  string

	JWTSecret []byte
	JWTAlg    string
	JWTTTL    time.Duration

	MongoURI      string
	MongoDatabase string
	MongoUser     string
	MongoPassword string

	RedisAddr     string // empty disables the presence mirror
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	SendQueueSize   int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	StorageTimeout  time.Duration
	CheckMembership bool
}

func Load() *Config {
	cfg := &Config{
		ListenAddr: getenv("GATEWAY_ADDR", ":8080"),
		GatewayID:  getenv("GATEWAY_ID", "msg_gw-1"),

		JWTSecret: []byte(getenv("JWT_SECRET", "dev-secret-change-me")),
		JWTAlg:    getenv("JWT_ALG", "HS256"),
		JWTTTL:    getdur("JWT_TTL", 2*time.Hour),

		MongoURI:      getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGO_DATABASE", "mchat"),
		MongoUser:     getenv("MONGO_USER", ""),
		MongoPassword: getenv("MONGO_PASSWORD", ""),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getint("REDIS_DB", 0),
		PresenceTTL:   getdur("PRESENCE_TTL", 2*time.Minute),

		SendQueueSize:   getint("SEND_QUEUE_SIZE", 256),
		WriteWait:       getdur("WRITE_WAIT", 5*time.Second),
		PongWait:        getdur("PONG_WAIT", 75*time.Second),
		StorageTimeout:  getdur("STORAGE_TIMEOUT", 5*time.Second),
		CheckMembership: getbool("CHECK_MEMBERSHIP", true),
	}
	// ping must fire before the pong deadline expires
	cfg.PingPeriod = cfg.PongWait * 2 / 3
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
