package config

import (
	"time"
)

type ServerConfig struct {
	Port             int           `config:"port" default:"8080" description:"HTTP port for the server"`
	GracefulShutdown time.Duration `config:"graceful-shutdown" default:"10s" description:"Grace period for in-flight requests on shutdown"`
	ReadTimeout      time.Duration `config:"read-timeout" default:"1h" description:"HTTP server read timeout"`
	WriteTimeout     time.Duration `config:"write-timeout" default:"1h" description:"HTTP server write timeout"`
	AllowedOrigins   []string      `config:"allowed-origins" default:"*" description:"CORS allowed origins"`
}

type LoggingConfig struct {
	Level      string `config:"level" default:"info" description:"Logging level (debug, info, warn, error)"`
	Format     string `config:"format" default:"console" validate:"oneof=console json" description:"Stdout log format (console, json)"`
	File       string `config:"file" description:"Log file path, rotated automatically"`
	MaxSize    int    `config:"max-size" default:"10" validate:"min=1" description:"Rotate the log file after this many megabytes"`
	MaxBackups int    `config:"max-backups" default:"3" description:"Rotated log files to keep"`
	MaxAge     int    `config:"max-age" default:"15" description:"Days to keep rotated log files"`
}

type DBConfig struct {
	Type        string        `config:"type" default:"bolt" validate:"oneof=bolt postgres" description:"Metadata store (bolt, postgres)"`
	BoltPath    string        `config:"bolt-path" description:"Bolt database file (default $HOME/.dropshare/dropshare.db)"`
	BoltTimeout time.Duration `config:"bolt-timeout" default:"30s" description:"How long to wait for the bolt file lock"`
	DataSource  string        `config:"data-source" validate:"required_if=Type postgres" description:"Postgres connection string"`
}

type StorageConfig struct {
	Type     string `config:"type" default:"local" validate:"oneof=local s3 webdav sftp" description:"Blob storage backend (local, s3, webdav, sftp)"`
	LocalDir string `config:"local-dir" default:"uploads" description:"Directory for the local backend"`
	S3       struct {
		Bucket       string `config:"bucket" description:"S3 bucket"`
		Region       string `config:"region" default:"us-east-1" description:"S3 region"`
		Endpoint     string `config:"endpoint" description:"Custom S3 endpoint (MinIO, R2, ...)"`
		AccessKey    string `config:"access-key" description:"S3 access key, falls back to the default AWS chain"`
		SecretKey    string `config:"secret-key" description:"S3 secret key"`
		Prefix       string `config:"prefix" description:"Key prefix inside the bucket"`
		UsePathStyle bool   `config:"use-path-style" description:"Use path style addressing"`
	} `config:"s3"`
	WebDAV struct {
		URL      string `config:"url" description:"WebDAV server URL"`
		User     string `config:"user" description:"WebDAV user"`
		Password string `config:"password" description:"WebDAV password"`
		Root     string `config:"root" default:"/dropshare" description:"WebDAV directory for blobs"`
	} `config:"webdav"`
	SFTP struct {
		Addr       string `config:"addr" description:"SFTP host:port"`
		User       string `config:"user" description:"SFTP user"`
		Password   string `config:"password" description:"SFTP password"`
		Root       string `config:"root" default:"dropshare" description:"SFTP directory for blobs"`
		KnownHosts string `config:"known-hosts" description:"known_hosts file used to verify the server key"`
	} `config:"sftp"`
}

type CacheConfig struct {
	MaxSize   int           `config:"max-size" default:"10485760" description:"In-memory cache size in bytes"`
	TTL       time.Duration `config:"ttl" default:"1h" description:"How long file records stay cached"`
	RedisAddr string        `config:"redis-addr" description:"Redis address, replaces the in-memory cache when set"`
	RedisPass string        `config:"redis-pass" description:"Redis password"`
}

type PasswordConfig struct {
	Algorithm string `config:"algorithm" default:"bcrypt" validate:"oneof=bcrypt" description:"Password hashing algorithm"`
	Cost      int    `config:"cost" default:"10" validate:"min=4,max=31" description:"Password hashing cost"`
}

type JWTConfig struct {
	Secret   string        `config:"secret" validate:"required" description:"Secret used to sign download tokens"`
	TokenTTL time.Duration `config:"token-ttl" default:"15m" description:"Lifetime of download tokens"`
}

type UploadsConfig struct {
	PublicURL  string        `config:"public-url" description:"Base URL used in returned links (default derived from the request)"`
	MaxSize    int64         `config:"max-size" default:"1073741824" description:"Maximum upload body size in bytes"`
	DefaultTTL time.Duration `config:"default-ttl" default:"0s" description:"Expiry applied when the uploader sends no ttl (0 = never); use max-ttl to force expiry"`
	MaxTTL     time.Duration `config:"max-ttl" default:"0s" description:"Upper bound for uploader supplied expiry (0 = unbounded)"`
	Rate       float64       `config:"rate" default:"0" description:"Uploads per minute per client (0 = unlimited)"`
	Burst      int           `config:"burst" default:"5" description:"Upload burst per client"`
}

type CronJobConfig struct {
	Enable        bool          `config:"enable" default:"true" description:"Run scheduled jobs"`
	PruneInterval time.Duration `config:"prune-interval" default:"1h" description:"Interval between expired file sweeps"`
}

type ServerCmdConfig struct {
	Server   ServerConfig   `config:"server"`
	Log      LoggingConfig  `config:"log"`
	DB       DBConfig       `config:"db"`
	Storage  StorageConfig  `config:"storage"`
	Cache    CacheConfig    `config:"cache"`
	Password PasswordConfig `config:"password"`
	JWT      JWTConfig      `config:"jwt"`
	Uploads  UploadsConfig  `config:"uploads"`
	CronJobs CronJobConfig  `config:"cronjobs"`
}

type PruneCmdConfig struct {
	Log     LoggingConfig `config:"log"`
	DB      DBConfig      `config:"db"`
	Storage StorageConfig `config:"storage"`
	Cache   CacheConfig   `config:"cache"`
}
