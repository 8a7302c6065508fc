package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Host:     "imap.example.com",
		Port:     993,
		Username: "worker",
		Password: "secret",
		Mailbox:  "INBOX",
		Format:   "json",
		StateDir: "/tmp/imapstep-state",
		LogLevel: "info",
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Host = "" },
			wantErr: "--host",
		},
		{
			name:    "missing user",
			mutate:  func(c *Config) { c.Username = "" },
			wantErr: "--user",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Password = "" },
			wantErr: "password",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "--port",
		},
		{
			name:    "empty mailbox",
			mutate:  func(c *Config) { c.Mailbox = "" },
			wantErr: "--mailbox",
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Format = "xml" },
			wantErr: "--format",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "--log-level",
		},
		{
			name: "include and exclude together",
			mutate: func(c *Config) {
				c.IncludeHeader = []string{"a"}
				c.ExcludeBody = []string{"b"}
			},
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
