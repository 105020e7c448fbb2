package app

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/edubridge/campusconnect/internal/connect"
	"github.com/edubridge/campusconnect/internal/data/db"
	"github.com/edubridge/campusconnect/internal/data/repos"
	httpapi "github.com/edubridge/campusconnect/internal/http"
	httpH "github.com/edubridge/campusconnect/internal/http/handlers"
	"github.com/edubridge/campusconnect/internal/host"
	"github.com/edubridge/campusconnect/internal/notify"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Cfg    Config
	Repos  *repos.Repos
	Syncer *connect.Syncer
	Server *httpapi.Server

	sched *Scheduler
}

// New wires the connector against one learning host. The host hands in
// its collaborator implementations; everything broker-facing is built
// here.
func New(h host.Host) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	theDB := dbService.DB()

	reposet := repos.New(theDB, log)

	if cfg.BrokersFile != "" {
		if err := seedBrokers(reposet, cfg.BrokersFile, log); err != nil {
			log.Sync()
			return nil, err
		}
	}

	trees := connect.NewDirectoryTrees(reposet.Directories, h.Categories, h.Courses, log)
	pgroups := connect.NewParallelGroups(reposet.PGroups, h.Groups, log)
	courses := connect.NewCourses(reposet.CourseRecords, reposet.PGroups, trees, pgroups, h.Courses, log)
	links := connect.NewCourseLinks(reposet.CourseLinks, trees, h.Courses, log)
	members := connect.NewMemberships(reposet.Memberships, reposet.CourseRecords, pgroups, h.Users, h.Enrolments, h.Groups, log)
	enroll := connect.NewEnrollments(reposet.Enrollments, reposet.CourseRecords, h.Users, h.Enrolments, log)
	exports := connect.NewExports(reposet.Exports, reposet.CourseRecords, h.Courses, log)
	queue := connect.NewEventQueue(reposet.Events, log)

	notifier := notify.NewLogNotifier(log)
	engine := connect.NewEngine(queue, courses, links, trees, members, enroll, h.Courses, notifier, log)
	refresher := connect.NewRefresher(courses, links, trees, members,
		reposet.CourseRecords, reposet.CourseLinks, reposet.Memberships, reposet.Directories, log)

	var lock connect.Locker
	if cfg.RedisAddr != "" {
		lock = NewRedisLocker(log, redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
	} else {
		log.Info("No REDIS_ADDR configured, using in-process sync lock")
		lock = NewLocalLocker()
	}

	clients := NewClientFactory(log)
	syncer := connect.NewSyncer(reposet.Brokers, queue, engine, enroll, exports, refresher,
		clients, lock, cfg.LeaseTTL, log)

	sched := NewScheduler(log, reposet.Brokers, syncer)
	if err := sched.Register(context.Background(), cfg.RefreshCron); err != nil {
		log.Sync()
		return nil, err
	}

	server := httpapi.NewServer(httpapi.RouterConfig{
		HealthHandler:     httpH.NewHealthHandler(),
		BrokerHandler:     httpH.NewBrokerHandler(log, reposet.Brokers),
		SyncHandler:       httpH.NewSyncHandler(log, reposet.Brokers, syncer, queue),
		DirectoryHandler:  httpH.NewDirectoryHandler(log, reposet.Directories, trees),
		ExportHandler:     httpH.NewExportHandler(log, exports),
		CourseLinkHandler: httpH.NewCourseLinkHandler(log, reposet.Brokers, links, clients),
		CORSOrigins:       cfg.CORSOrigins,
	})

	return &App{
		Log:    log,
		DB:     theDB,
		Cfg:    cfg,
		Repos:  reposet,
		Syncer: syncer,
		Server: server,
		sched:  sched,
	}, nil
}

// Run starts the scheduler and serves the admin API until the server
// exits.
func (a *App) Run() error {
	a.sched.Start()
	defer func() {
		<-a.sched.Stop().Done()
		a.Log.Sync()
	}()

	a.Log.Info("Connector listening", "port", a.Cfg.HTTPPort)
	return a.Server.Run(":" + a.Cfg.HTTPPort)
}

// seedBrokers upserts broker connections from the YAML settings file.
// Credentials already stored are kept when the file leaves them blank.
func seedBrokers(reposet *repos.Repos, path string, log *logger.Logger) error {
	brokers, err := loadBrokerFile(path)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, broker := range brokers {
		existing, err := reposet.Brokers.Get(ctx, nil, broker.BrokerID)
		if err != nil {
			return fmt.Errorf("load broker %d: %w", broker.BrokerID, err)
		}
		if existing != nil {
			broker.CreatedAt = existing.CreatedAt
			if broker.AuthToken == "" {
				broker.AuthToken = existing.AuthToken
			}
			if broker.TokenSecret == "" {
				broker.TokenSecret = existing.TokenSecret
			}
		}
		if err := reposet.Brokers.Save(ctx, nil, broker); err != nil {
			return fmt.Errorf("save broker %d: %w", broker.BrokerID, err)
		}
		log.Info("Seeded broker connection", "broker_id", broker.BrokerID, "name", broker.Name)
	}
	return nil
}
