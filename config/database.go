package config

import (
	"errors"
	"strings"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"bgsms"`
	Password string `env:"PASSWORD"                envDefault:"bgsms"`
	Name     string `env:"NAME"                    envDefault:"bgsms"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the CLI applies migrations before running a command.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"false"`
}

// Validate reports missing connection parameters.
func (c *DBConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("DB_HOST: must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("DB_PORT: must be a valid port"))
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("DB_NAME: must not be empty"))
	}
	return errors.Join(errs...)
}

// RedisConfig contains Redis configuration for the queue transport.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// Validate reports a transport configuration that cannot be dialed.
func (c *RedisConfig) Validate() error {
	switch {
	case c.UseCluster && len(c.ClusterNodes) == 0:
		return errors.New("REDIS_CLUSTER_NODES: required when REDIS_USE_CLUSTER=true")
	case c.UseSentinel && len(c.SentinelNodes) == 0:
		return errors.New("REDIS_SENTINEL_NODES: required when REDIS_USE_SENTINEL=true")
	case !c.UseCluster && !c.UseSentinel && strings.TrimSpace(c.URI) == "":
		return errors.New("REDIS_URI: must not be empty")
	}
	return nil
}

// QueueRole selects which server list a process connects to.
type QueueRole string

const (
	// QueueRoleClient is used by the CLI and the orchestrator when submitting work.
	QueueRoleClient QueueRole = "client"
	// QueueRoleWorker is used by processes that register queue functions.
	QueueRoleWorker QueueRole = "worker"
)

// QueueConfig holds queue transport settings layered on top of RedisConfig.
type QueueConfig struct {
	// KeyPrefix namespaces every Redis key written by the transport.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"bgsms"`

	// ClientServers and WorkerServers optionally override REDIS_URI per role.
	// Multiple servers are treated as cluster nodes.
	ClientServers []string `env:"CLIENT_SERVERS" envSeparator:","`
	WorkerServers []string `env:"WORKER_SERVERS" envSeparator:","`
}

// Sanitize trims server lists and defaults the key prefix.
func (c *QueueConfig) Sanitize() {
	if c.KeyPrefix = strings.Trim(strings.TrimSpace(c.KeyPrefix), ":"); c.KeyPrefix == "" {
		c.KeyPrefix = "bgsms"
	}
	c.ClientServers = trimList(c.ClientServers)
	c.WorkerServers = trimList(c.WorkerServers)
}

// RedisFor returns the Redis configuration a process in the given role should dial.
func (c *AppConfig) RedisFor(role QueueRole) RedisConfig {
	servers := c.Queue.ClientServers
	if role == QueueRoleWorker {
		servers = c.Queue.WorkerServers
	}

	out := c.Redis
	switch len(servers) {
	case 0:
	case 1:
		out.URI = servers[0]
		out.UseCluster = false
		out.UseSentinel = false
	default:
		out.ClusterNodes = append([]string(nil), servers...)
		out.UseCluster = true
		out.UseSentinel = false
	}
	return out
}

func trimList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
