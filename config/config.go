// config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server     ServerConfiguration
	Auth       AuthConfiguration
	Federation FederationConfiguration
	Proxy      ProxyConfiguration
	Redis      RedisConfiguration
	RateLimit  RateLimitConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// AuthConfiguration stores the token verification settings
type AuthConfiguration struct {
	Issuer         string
	JwksURI        string
	ExpectedClient string
	Audiences      []string
	RequiredRole   string
	ClockSkew      time.Duration
	JwksTimeout    time.Duration
}

// FederationConfiguration stores the backend query endpoints
type FederationConfiguration struct {
	Endpoints    []EndpointConfiguration
	QueryTimeout time.Duration
	EntityBase   string
}

// EndpointConfiguration identifies one backend SPARQL endpoint
type EndpointConfiguration struct {
	Name string
	URL  string
}

// ProxyConfiguration stores the pass-through upstream settings
type ProxyConfiguration struct {
	Upstream string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr string
}

// RateLimitConfiguration stores the request rate limiting settings
type RateLimitConfiguration struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8081")
	viper.SetDefault("auth.issuer", "http://localhost:8080/realms/capstone")
	viper.SetDefault("auth.jwksURI", "http://localhost:8080/realms/capstone/protocol/openid-connect/certs")
	viper.SetDefault("auth.expectedClient", "webapp")
	viper.SetDefault("auth.audiences", []string{"webapp", "account"})
	viper.SetDefault("auth.requiredRole", "study_A")
	viper.SetDefault("auth.clockSkew", "30s")
	viper.SetDefault("auth.jwksTimeout", "5s")
	viper.SetDefault("federation.queryTimeout", "10s")
	viper.SetDefault("federation.entityBase", "http://example.org/")
	viper.SetDefault("proxy.upstream", "http://localhost:3030/dataset/query")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("ratelimit.enabled", false)
	viper.SetDefault("ratelimit.requests", 100)
	viper.SetDefault("ratelimit.window", "1m")
	viper.SetDefault("log.file", "logging/api.log")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetStringSlice retrieves a string slice value from the configuration
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// Endpoints returns the configured federation endpoints in priority order.
// Point lookups probe them in exactly this order.
func Endpoints() []EndpointConfiguration {
	if config == nil {
		return nil
	}
	return config.Federation.Endpoints
}
