package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBrokerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brokers.yaml")
	content := `
brokers:
  - broker_id: 1
    name: university
    url: https://ecs.example.org
    auth_token: secret-token
    poll_interval_seconds: 120
    cms_member_id: 7
    import_category_id: 42
  - broker_id: 2
    name: partner
    url: https://partner.example.org
    enabled: false
    keep_orphaned_groups: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	brokers, err := loadBrokerFile(path)
	if err != nil {
		t.Fatalf("loadBrokerFile: %v", err)
	}
	if len(brokers) != 2 {
		t.Fatalf("brokers = %d, want 2", len(brokers))
	}

	first := brokers[0]
	if first.BrokerID != 1 || first.URL != "https://ecs.example.org" ||
		first.PollIntervalSeconds != 120 || first.CmsMemberID != 7 ||
		first.ImportCategoryID != 42 {
		t.Fatalf("first broker = %+v", first)
	}
	if !first.Enabled || !first.KeepOrphanedGroups {
		t.Fatalf("defaults not applied: %+v", first)
	}

	second := brokers[1]
	if second.Enabled || second.KeepOrphanedGroups {
		t.Fatalf("explicit flags ignored: %+v", second)
	}
	if second.PollIntervalSeconds != 60 {
		t.Fatalf("poll interval default = %d", second.PollIntervalSeconds)
	}
}

func TestLoadBrokerFileRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brokers.yaml")
	if err := os.WriteFile(path, []byte("brokers:\n  - name: nourl\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadBrokerFile(path); err == nil {
		t.Fatalf("entry without broker_id/url must be rejected")
	}
}
