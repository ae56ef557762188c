package config

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"ledgerly"`
	Password string `env:"PASSWORD"                envDefault:"ledgerly"`
	Name     string `env:"NAME"                    envDefault:"ledgerly"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the postgres store applies migrations when it is opened.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig selects the Redis deployment used by the redis storage backend.
// A single URI connects directly; Addrs with MasterName uses sentinel failover;
// two or more Addrs without MasterName use cluster mode.
type RedisConfig struct {
	// URI is a redis:// or rediss:// URL, or a bare host:port.
	URI        string   `env:"URI"         envDefault:"localhost:6379"`
	Password   string   `env:"PASSWORD"`
	DB         int      `env:"DB"          envDefault:"0"`
	Addrs      []string `env:"ADDRS"`
	MasterName string   `env:"MASTER_NAME"`
}
