package config

import "os"

// Config holds the gateway settings read from the environment.
type Config struct {
	Port             string
	DirectLineSecret string
	SpeechKey        string
	SpeechRegion     string
	SecretKey        string // browser session cookie signing key
	RedisAddr        string // optional; empty means in-process session store
}

func Load() Config {
	c := Config{
		Port:             os.Getenv("PORT"),
		DirectLineSecret: os.Getenv("DIRECT_LINE_SECRET"),
		SpeechKey:        os.Getenv("SPEECH_KEY"),
		SpeechRegion:     os.Getenv("SPEECH_REGION"),
		SecretKey:        os.Getenv("SECRET_KEY"),
		RedisAddr:        firstNonEmpty(os.Getenv("REDIS_ADDR"), os.Getenv("REDIS_URI"), os.Getenv("REDIS_URL")),
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.SecretKey == "" {
		// development fallback, never use in production
		c.SecretKey = "your-development-secret-key-here"
	}
	return c
}

// MissingRequired reports which required variables are unset. The server still
// starts without them; the affected endpoints fail with UNAVAILABLE instead.
func (c Config) MissingRequired() []string {
	var missing []string
	if c.DirectLineSecret == "" {
		missing = append(missing, "DIRECT_LINE_SECRET")
	}
	if c.SpeechRegion == "" {
		missing = append(missing, "SPEECH_REGION")
	}
	if c.SpeechKey == "" {
		missing = append(missing, "SPEECH_KEY")
	}
	return missing
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
