package models

import (
	"strings"
	"time"
)

// Options for the CLI. Every option can also be set through a SERVICE_
// prefixed environment variable (e.g. SERVICE_PORT) or a .env file.
type Options struct {
	Debug            bool   `doc:"Enable debug logging" short:"d" default:"false"`
	Host             string `doc:"Hostname to listen on" default:"0.0.0.0"`
	Port             int    `doc:"Port to listen on" short:"p" default:"3000"`
	LogFormat        string `doc:"Log output format (console or json)" default:"console"`
	Timeout          int    `doc:"Scrubbing engine timeout in milliseconds (0 disables)" default:"10000"`
	MaxBodyBytes     int    `doc:"Maximum request body size in bytes" default:"1048576"`
	PatternFile      string `doc:"YAML file with additional or overriding recognizers"`
	MinScore         int    `doc:"Minimum recognizer score in percent (0 uses the engine default)" default:"0"`
	EnabledEntities  string `doc:"Comma separated entity types to detect (empty detects all)"`
	DisabledEntities string `doc:"Comma separated entity types to skip"`
	CORSOrigins      string `doc:"Comma separated allowed CORS origins (* allows all)" default:"*"`
	APIKey           string `doc:"API key required for /anonymize (empty disables authentication)"`
	RateLimit        int    `doc:"Requests per second per client (0 disables rate limiting)" default:"0"`
	RateBurst        int    `doc:"Rate limit burst size" default:"10"`
	RateLimitBackend string `doc:"Rate limit backend (memory or redis)" default:"memory"`
	RedisURL         string `doc:"Redis URL for the redis rate limit backend" default:"redis://localhost:6379/0"`
}

// EngineTimeout returns the engine timeout as a duration.
func (o *Options) EngineTimeout() time.Duration {
	if o.Timeout <= 0 {
		return 0
	}
	return time.Duration(o.Timeout) * time.Millisecond
}

// EnabledEntityList splits EnabledEntities.
func (o *Options) EnabledEntityList() []string {
	return SplitList(o.EnabledEntities)
}

// DisabledEntityList splits DisabledEntities.
func (o *Options) DisabledEntityList() []string {
	return SplitList(o.DisabledEntities)
}

// CORSOriginList splits CORSOrigins. An empty value means all origins.
func (o *Options) CORSOriginList() []string {
	origins := SplitList(o.CORSOrigins)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// SplitList splits a comma separated list, trimming blanks and dropping
// empty items.
func SplitList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
