package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// minimalYAML is the smallest configuration that passes validation.
const minimalYAML = `
source:
  file: /data/sales.csv
salesforce:
  instanceUrl: https://acme.my.salesforce.com
  auth:
    clientId: consumer-key
    username: integration@acme.com
    privateKeyFile: /etc/keys/sf.key
    audienceUrl: https://login.salesforce.com
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level default mismatch: got %q", cfg.Logging.Level)
	}
	if cfg.Source.Type != SourceTypeCSV || cfg.Source.Delimiter != "," {
		t.Errorf("Source defaults mismatch: type=%q delimiter=%q", cfg.Source.Type, cfg.Source.Delimiter)
	}
	if cfg.Salesforce.APIVersion != "v59.0" {
		t.Errorf("APIVersion default mismatch: got %q", cfg.Salesforce.APIVersion)
	}
	if cfg.Salesforce.Bulk.Object != "Opportunity" || cfg.Salesforce.Bulk.Operation != "insert" {
		t.Errorf("Bulk defaults mismatch: object=%q operation=%q", cfg.Salesforce.Bulk.Object, cfg.Salesforce.Bulk.Operation)
	}
	if cfg.Salesforce.Bulk.PollInterval != 5*time.Second || cfg.Salesforce.Bulk.PollTimeout != 600*time.Second {
		t.Errorf("Poll defaults mismatch: interval=%s timeout=%s", cfg.Salesforce.Bulk.PollInterval, cfg.Salesforce.Bulk.PollTimeout)
	}
	if cfg.Reports.Dir != "var" {
		t.Errorf("Reports.Dir default mismatch: got %q", cfg.Reports.Dir)
	}
	if cfg.Reports.Archive == nil || !*cfg.Reports.Archive {
		t.Error("Reports.Archive should default to true")
	}
	if cfg.Audit != nil {
		t.Error("Audit should stay nil when not configured")
	}
}

func TestLoadConfigFull(t *testing.T) {
	yaml := `
logging:
  level: debug
source:
  type: xlsx
  file: /data/sales.xlsx
  sheetName: Sales
salesforce:
  instanceUrl: https://acme.my.salesforce.com
  apiVersion: v60.0
  auth:
    clientId: consumer-key
    username: integration@acme.com
    privateKeyFile: /etc/keys/sf.key
    audienceUrl: https://test.salesforce.com
  bulk:
    object: Opportunity
    operation: upsert
    pollInterval: 2s
    pollTimeout: 120s
reports:
  dir: /srv/imports
  archive: false
filter: "partner_name != 'INTERNAL'"
audit:
  dsn: postgres://etl:pw@db/audit
`
	cfg, err := LoadConfig(writeTempConfig(t, yaml))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Source.Type != "xlsx" || cfg.Source.SheetName != "Sales" {
		t.Errorf("Source section mismatch: %+v", cfg.Source)
	}
	if cfg.Salesforce.APIVersion != "v60.0" {
		t.Errorf("APIVersion mismatch: got %q", cfg.Salesforce.APIVersion)
	}
	if cfg.Salesforce.Bulk.Operation != "upsert" || cfg.Salesforce.Bulk.PollInterval != 2*time.Second {
		t.Errorf("Bulk section mismatch: %+v", cfg.Salesforce.Bulk)
	}
	if cfg.Reports.Archive == nil || *cfg.Reports.Archive {
		t.Error("Reports.Archive should honor an explicit false")
	}
	if cfg.Filter == "" {
		t.Error("Filter expression not loaded")
	}
	if cfg.Audit == nil || cfg.Audit.Table != DefaultAuditTable {
		t.Errorf("Audit table should default when the section is present: %+v", cfg.Audit)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Expected error for missing file, got nil")
		}
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		if _, err := LoadConfig(writeTempConfig(t, "source: [unclosed")); err == nil {
			t.Error("Expected error for malformed YAML, got nil")
		}
	})
}

func TestValidateConfig(t *testing.T) {
	valid := func() *ImportConfig {
		cfg := &ImportConfig{}
		cfg.Logging.Level = "info"
		cfg.Source.Type = SourceTypeCSV
		cfg.Source.Delimiter = ","
		cfg.Salesforce.InstanceURL = "https://acme.my.salesforce.com"
		cfg.Salesforce.APIVersion = "v59.0"
		cfg.Salesforce.Auth.ClientID = "cid"
		cfg.Salesforce.Auth.Username = "user@acme.com"
		cfg.Salesforce.Auth.PrivateKeyFile = "/etc/keys/sf.key"
		cfg.Salesforce.Auth.AudienceURL = "https://login.salesforce.com"
		cfg.Salesforce.Bulk.PollInterval = 5 * time.Second
		cfg.Salesforce.Bulk.PollTimeout = 600 * time.Second
		return cfg
	}

	testCases := []struct {
		name         string
		mutate       func(*ImportConfig)
		wantFragment string
	}{
		{
			name:   "Valid config",
			mutate: func(*ImportConfig) {},
		},
		{
			name:         "Invalid log level",
			mutate:       func(c *ImportConfig) { c.Logging.Level = "verbose" },
			wantFragment: "Config.Logging.Level",
		},
		{
			name:         "Unknown source type",
			mutate:       func(c *ImportConfig) { c.Source.Type = "json" },
			wantFragment: "Config.Source.Type",
		},
		{
			name:         "Multi-char delimiter",
			mutate:       func(c *ImportConfig) { c.Source.Delimiter = ";;" },
			wantFragment: "Config.Source.Delimiter",
		},
		{
			name: "Delimiter on xlsx source",
			mutate: func(c *ImportConfig) {
				c.Source.Type = SourceTypeXLSX
				c.Source.Delimiter = ";"
			},
			wantFragment: "not applicable for xlsx",
		},
		{
			name:         "Missing instance URL",
			mutate:       func(c *ImportConfig) { c.Salesforce.InstanceURL = "" },
			wantFragment: "Config.Salesforce.InstanceURL: is required",
		},
		{
			name:         "Relative instance URL",
			mutate:       func(c *ImportConfig) { c.Salesforce.InstanceURL = "acme.my.salesforce.com" },
			wantFragment: "not an absolute URL",
		},
		{
			name:         "Missing client id",
			mutate:       func(c *ImportConfig) { c.Salesforce.Auth.ClientID = "" },
			wantFragment: "Config.Salesforce.Auth.ClientID",
		},
		{
			name:         "Missing private key file",
			mutate:       func(c *ImportConfig) { c.Salesforce.Auth.PrivateKeyFile = "" },
			wantFragment: "Config.Salesforce.Auth.PrivateKeyFile",
		},
		{
			name: "Poll interval exceeds timeout",
			mutate: func(c *ImportConfig) {
				c.Salesforce.Bulk.PollInterval = 10 * time.Minute
				c.Salesforce.Bulk.PollTimeout = time.Minute
			},
			wantFragment: "pollInterval",
		},
		{
			name:         "Invalid filter expression",
			mutate:       func(c *ImportConfig) { c.Filter = "partner_name ==" },
			wantFragment: "Config.Filter",
		},
		{
			name: "Audit table with invalid characters",
			mutate: func(c *ImportConfig) {
				c.Audit = &AuditConfig{DSN: "postgres://x", Table: "runs; drop table x"}
			},
			wantFragment: "Config.Audit.Table",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := ValidateConfig(cfg)

			if tc.wantFragment == "" {
				if err != nil {
					t.Errorf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantFragment) {
				t.Errorf("Error should mention %q, got: %v", tc.wantFragment, err)
			}
		})
	}
}

// TestValidateConfigAggregatesErrors verifies every problem is reported in a
// single pass, not just the first.
func TestValidateConfigAggregatesErrors(t *testing.T) {
	cfg := &ImportConfig{}
	cfg.Logging.Level = "info"
	cfg.Source.Type = SourceTypeCSV

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}
	for _, fragment := range []string{
		"Config.Salesforce.InstanceURL",
		"Config.Salesforce.Auth.ClientID",
		"Config.Salesforce.Auth.Username",
		"Config.Salesforce.Auth.PrivateKeyFile",
		"Config.Salesforce.Auth.AudienceURL",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Aggregated error missing %q:\n%v", fragment, err)
		}
	}
}

func TestLoadConfigExpandedInstanceURL(t *testing.T) {
	t.Setenv("SF_INSTANCE", "https://acme.my.salesforce.com")
	yaml := strings.Replace(minimalYAML, "https://acme.my.salesforce.com", "${SF_INSTANCE}", 1)

	cfg, err := LoadConfig(writeTempConfig(t, yaml))
	if err != nil {
		t.Fatalf("Env-var instance URL should validate after expansion: %v", err)
	}
	if cfg.Salesforce.InstanceURL != "${SF_INSTANCE}" {
		t.Errorf("Raw value should be preserved for later expansion, got %q", cfg.Salesforce.InstanceURL)
	}
}
