package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
admin:
  username: ops
  password_hash: "$2a$12$abcdefghijklmnopqrstuv"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server defaults not applied: %+v", cfg.Server)
	}
	if cfg.AWS.Region != "us-east-1" {
		t.Errorf("region default not applied: %q", cfg.AWS.Region)
	}
	if cfg.Database.DSN == "" {
		t.Error("database DSN default not applied")
	}
	if cfg.Security.LockoutThreshold != 5 || cfg.Security.Cooldown() != 15*time.Minute {
		t.Errorf("security defaults not applied: %+v", cfg.Security)
	}
	if cfg.RateLimit.Proxy.Limit != 30 || cfg.RateLimit.Proxy.Span() != time.Minute {
		t.Errorf("proxy rate window default not applied: %+v", cfg.RateLimit.Proxy)
	}
	if cfg.Upstream.Timeout() != 10*time.Second {
		t.Errorf("upstream timeout default not applied: %v", cfg.Upstream.Timeout())
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
server:
  port: 9100
  host: 127.0.0.1
security:
  lockout_threshold: 3
  lockout_cooldown_minutes: 30
rate_limit:
  proxy:
    limit: 5
    window_seconds: 10
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server overrides lost: %+v", cfg.Server)
	}
	if cfg.Security.LockoutThreshold != 3 || cfg.Security.Cooldown() != 30*time.Minute {
		t.Errorf("security overrides lost: %+v", cfg.Security)
	}
	if cfg.RateLimit.Proxy.Limit != 5 || cfg.RateLimit.Proxy.Span() != 10*time.Second {
		t.Errorf("rate limit overrides lost: %+v", cfg.RateLimit.Proxy)
	}
}

func TestLoadRequiresAdminWithoutLDAP(t *testing.T) {
	if _, err := Load(writeConfig(t, "server:\n  port: 9100\n")); err == nil {
		t.Fatal("missing admin credentials should fail validation")
	}
}

func TestLoadValidatesLDAP(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing url", `
ldap:
  enabled: true
  bind_dn: cn=svc
  bind_password: pw
  base_dn: dc=example
  group_mapping:
    admin: cn=dns-admins
`},
		{"missing bind credentials", `
ldap:
  enabled: true
  url: ldaps://ldap.example.com
  base_dn: dc=example
  group_mapping:
    admin: cn=dns-admins
`},
		{"missing group mapping", `
ldap:
  enabled: true
  url: ldaps://ldap.example.com
  bind_dn: cn=svc
  bind_password: pw
  base_dn: dc=example
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Fatal("invalid LDAP config should fail validation")
			}
		})
	}
}

func TestLoadLDAPDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
ldap:
  enabled: true
  url: ldaps://ldap.example.com
  bind_dn: cn=svc
  bind_password: pw
  base_dn: dc=example
  group_mapping:
    admin: cn=dns-admins
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LDAP.UserFilter != "(sAMAccountName=%s)" {
		t.Errorf("user filter default not applied: %q", cfg.LDAP.UserFilter)
	}
	if cfg.LDAP.UsernameAttr != "sAMAccountName" {
		t.Errorf("username attr default not applied: %q", cfg.LDAP.UsernameAttr)
	}
}
