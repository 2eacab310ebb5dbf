package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generation GenerationConfig `mapstructure:"generation"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Intent     IntentConfig     `mapstructure:"intent"`
	FAQ        FAQConfig        `mapstructure:"faq"`
	Database   DatabaseConfig   `mapstructure:"database"`
	CRM        CRMConfig        `mapstructure:"crm"`
	Leads      LeadsConfig      `mapstructure:"leads"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type CatalogConfig struct {
	Path     string `mapstructure:"path"`
	CacheDir string `mapstructure:"cache_dir"`
	Watch    bool   `mapstructure:"watch"`
}

type EmbeddingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type GenerationConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
	// MinScore separates good from poor matches; a tuning constant,
	// not part of ranking correctness.
	MinScore float64 `mapstructure:"min_score"`
	// ExactScanLimit bounds the catalog size for which the flat cosine
	// scan is used before an approximate structure would be introduced.
	ExactScanLimit int `mapstructure:"exact_scan_limit"`
}

type IntentConfig struct {
	BuyingPhrases []string `mapstructure:"buying_phrases"`
	FAQKeywords   []string `mapstructure:"faq_keywords"`
}

type FAQConfig struct {
	Source        string   `mapstructure:"source"` // "file" or "elasticsearch"
	Path          string   `mapstructure:"path"`
	Index         string   `mapstructure:"index"`
	ESAddresses   []string `mapstructure:"es_addresses"`
	ESUsername    string   `mapstructure:"es_username"`
	ESPassword    string   `mapstructure:"es_password"`
	LookupTimeout int      `mapstructure:"lookup_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// ConversationTTL bounds how long idle conversations are retained,
	// in milliseconds. Zero never happens after defaults are applied.
	ConversationTTL int `mapstructure:"conversation_ttl"`
}

type CRMConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	OAuthToken string `mapstructure:"oauth_token"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

type LeadsConfig struct {
	NotifyEnabled bool   `mapstructure:"notify_enabled"`
	NotifyFrom    string `mapstructure:"notify_from"`
	NotifyTo      string `mapstructure:"notify_to"`
	AWSRegion     string `mapstructure:"aws_region"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
