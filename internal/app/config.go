package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
	"github.com/edubridge/campusconnect/internal/utils"
)

type Config struct {
	HTTPPort      string
	LeaseTTL      time.Duration
	RefreshCron   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BrokersFile   string
	CORSOrigins   []string
}

func LoadConfig(log *logger.Logger) Config {
	leaseTTLSeconds := utils.GetEnvAsInt("SYNC_LEASE_TTL", 300, log)
	return Config{
		HTTPPort:      utils.GetEnv("PORT", "8080", log),
		LeaseTTL:      time.Duration(leaseTTLSeconds) * time.Second,
		RefreshCron:   utils.GetEnv("REFRESH_CRON", "0 3 * * *", log),
		RedisAddr:     utils.GetEnv("REDIS_ADDR", "", log),
		RedisPassword: utils.GetEnv("REDIS_PASSWORD", "", log),
		RedisDB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
		BrokersFile:   utils.GetEnv("BROKER_CONFIG_FILE", "", log),
		CORSOrigins:   splitOrigins(utils.GetEnv("CORS_ORIGINS", "", log)),
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if o := strings.TrimSpace(part); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// brokerFileEntry is one broker connection block in the optional YAML
// settings file. File entries seed the database on startup; later edits
// through the API win.
type brokerFileEntry struct {
	BrokerID              int    `yaml:"broker_id"`
	Name                  string `yaml:"name"`
	URL                   string `yaml:"url"`
	AuthToken             string `yaml:"auth_token"`
	TokenSecret           string `yaml:"token_secret"`
	PollIntervalSeconds   int    `yaml:"poll_interval_seconds"`
	Enabled               *bool  `yaml:"enabled"`
	CmsMemberID           int    `yaml:"cms_member_id"`
	ImportCategoryID      int64  `yaml:"import_category_id"`
	CreateEmptyCategories bool   `yaml:"create_empty_categories"`
	KeepOrphanedGroups    *bool  `yaml:"keep_orphaned_groups"`
}

type brokerFile struct {
	Brokers []brokerFileEntry `yaml:"brokers"`
}

func loadBrokerFile(path string) ([]*types.BrokerSettings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read broker config: %w", err)
	}
	var file brokerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse broker config: %w", err)
	}

	now := time.Now()
	brokers := make([]*types.BrokerSettings, 0, len(file.Brokers))
	for _, entry := range file.Brokers {
		if entry.BrokerID <= 0 || entry.URL == "" {
			return nil, fmt.Errorf("broker config entry %q needs broker_id and url", entry.Name)
		}
		broker := &types.BrokerSettings{
			BrokerID:              entry.BrokerID,
			Name:                  entry.Name,
			URL:                   entry.URL,
			AuthToken:             entry.AuthToken,
			TokenSecret:           entry.TokenSecret,
			PollIntervalSeconds:   entry.PollIntervalSeconds,
			Enabled:               true,
			CmsMemberID:           entry.CmsMemberID,
			ImportCategoryID:      entry.ImportCategoryID,
			CreateEmptyCategories: entry.CreateEmptyCategories,
			KeepOrphanedGroups:    true,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if broker.PollIntervalSeconds <= 0 {
			broker.PollIntervalSeconds = 60
		}
		if entry.Enabled != nil {
			broker.Enabled = *entry.Enabled
		}
		if entry.KeepOrphanedGroups != nil {
			broker.KeepOrphanedGroups = *entry.KeepOrphanedGroups
		}
		brokers = append(brokers, broker)
	}
	return brokers, nil
}
