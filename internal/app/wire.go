package app

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/hitoshi/adledger/internal/access"
	"github.com/hitoshi/adledger/internal/bot"
	"github.com/hitoshi/adledger/internal/calendar"
	"github.com/hitoshi/adledger/internal/channel"
	"github.com/hitoshi/adledger/internal/config"
	"github.com/hitoshi/adledger/internal/conversation"
	"github.com/hitoshi/adledger/internal/messages"
	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/mirror"
	"github.com/hitoshi/adledger/internal/notify"
	"github.com/hitoshi/adledger/internal/reminder"
	"github.com/hitoshi/adledger/internal/repository"
	"github.com/hitoshi/adledger/internal/sale"
	"github.com/hitoshi/adledger/internal/security"
	"github.com/hitoshi/adledger/internal/view"
	"github.com/hitoshi/adledger/internal/worker/cleanup"
)

// Repositories は永続化層一式。
type Repositories struct {
	Users         repository.UserRepository
	Channels      repository.ChannelRepository
	Sales         repository.SaleRepository
	Reminders     repository.ReminderRepository
	Conversations repository.ConversationRepository
}

// PostgresRepositories はPostgreSQLのリポジトリ一式を生成する。
func PostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Users:         repository.NewPostgresUserRepo(db),
		Channels:      repository.NewPostgresChannelRepo(db),
		Sales:         repository.NewPostgresSaleRepo(db),
		Reminders:     repository.NewPostgresReminderRepo(db),
		Conversations: repository.NewPostgresConversationRepo(db),
	}
}

// BuildOptions はBuildの設定。
type BuildOptions struct {
	Location            *time.Location
	WebAppURL           string
	BotUsername         string
	ConversationTTL     time.Duration
	MirrorMaxConcurrent int
	MirrorTimeout       time.Duration
	ReminderTolerance   time.Duration
	ReminderSendRate    float64
}

// OptionsFromConfig は設定からBuildOptionsを作る。
func OptionsFromConfig(cfg *config.Config) BuildOptions {
	return BuildOptions{
		Location:            cfg.TimeZone,
		WebAppURL:           cfg.WebAppURL(),
		BotUsername:         cfg.BotUsername,
		ConversationTTL:     cfg.ConversationTTL,
		MirrorMaxConcurrent: cfg.MirrorMaxConcurrent,
		MirrorTimeout:       cfg.MirrorTimeout,
		ReminderTolerance:   cfg.ReminderTolerance,
		ReminderSendRate:    cfg.ReminderSendRate,
	}
}

// Components はボットの構成要素一式。
type Components struct {
	Router   *bot.Router
	Sweeper  *reminder.Sweeper
	Cleanup  *cleanup.CleanupJob
	Sessions conversation.Store
	Channels *channel.Service
	Sales    *sale.Service
}

// Build は依存関係をワイヤリングする。
// store はスプレッドシートの実装で、連携しない場合は mirror.Noop を渡す。
func Build(repos Repositories, store mirror.Store, notifier notify.Notifier, collector metrics.MetricsCollector, logger *slog.Logger, opts BuildOptions) *Components {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	catalog := messages.Default()
	v := view.NewRenderer(catalog, opts.Location, opts.WebAppURL)
	sanitizer := security.NewTextSanitizer()
	gate := access.NewGate(repos.Channels, repos.Sales)
	index := calendar.NewIndex(repos.Sales, opts.Location)
	sessions := conversation.NewRepoStore(repos.Conversations, opts.ConversationTTL)

	channels := channel.NewService(repos.Channels, repos.Sales, gate, notifier, catalog, sanitizer, logger,
		opts.BotUsername, store.TableURL)
	sales := sale.NewService(sale.Deps{
		Sales:     repos.Sales,
		Channels:  repos.Channels,
		Users:     repos.Users,
		Gate:      gate,
		Mirror:    mirror.NewDispatcher(store, collector, logger, opts.MirrorMaxConcurrent, opts.MirrorTimeout),
		Index:     index,
		Scheduler: reminder.NewScheduler(repos.Reminders, logger),
		Notifier:  notifier,
		View:      v,
		Metrics:   collector,
		Logger:    logger,
	})

	router := bot.NewRouter(bot.Deps{
		Users:    repos.Users,
		Channels: channels,
		Sales:    sales,
		Gate:     gate,
		Index:    index,
		Sessions: sessions,
		Create: conversation.NewSaleFlow(conversation.SaleFlowDeps{
			Store:     sessions,
			Channels:  channels,
			Gate:      gate,
			Index:     index,
			Committer: sales,
			View:      v,
			Sanitizer: sanitizer,
			Logger:    logger,
		}),
		Edit: conversation.NewEditFlow(conversation.EditFlowDeps{
			Store:     sessions,
			Editor:    sales,
			View:      v,
			Sanitizer: sanitizer,
			Logger:    logger,
		}),
		Notifier: notifier,
		View:     v,
		Metrics:  collector,
		Logger:   logger,
	})

	return &Components{
		Router:   router,
		Sweeper:  newSweeper(repos.Reminders, notifier, catalog, collector, logger, opts),
		Cleanup:  cleanup.NewCleanupJob(repos.Conversations, logger, opts.ConversationTTL),
		Sessions: sessions,
		Channels: channels,
		Sales:    sales,
	}
}

func newSweeper(reminders repository.ReminderRepository, notifier notify.Notifier, catalog *messages.Catalog, collector metrics.MetricsCollector, logger *slog.Logger, opts BuildOptions) *reminder.Sweeper {
	return reminder.NewSweeper(reminders, notifier, catalog, collector, logger, reminder.SweeperOptions{
		Tolerance: opts.ReminderTolerance,
		SendRate:  opts.ReminderSendRate,
		Location:  opts.Location,
	})
}
