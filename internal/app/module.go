package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/paysync/internal/app/api/server"
	"github.com/fatflowers/paysync/internal/app/service/notification"
	notificationhandler "github.com/fatflowers/paysync/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/paysync/internal/app/service/notification_log"
	"github.com/fatflowers/paysync/internal/app/service/payment"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/internal/app/service/statistics"
	"github.com/fatflowers/paysync/internal/app/service/subscription"
	"github.com/fatflowers/paysync/internal/app/service/sweeper"
	"github.com/fatflowers/paysync/internal/platform/chip"
	"github.com/fatflowers/paysync/internal/platform/db"
	"github.com/fatflowers/paysync/internal/platform/hitpay"
	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/internal/platform/toyyibpay"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/logger"
	"github.com/fatflowers/paysync/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 30 * time.Second
)

// CoreModule wires storage, providers and the reconciliation services
// without any inbound surface.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	metrics.Module,
	provider.Module,
	toyyibpay.Module,
	hitpay.Module,
	chip.Module,
	payment.Module,
	subscription.Module,
	notification.Module,
	notificationlog.Module,
	reconcile.Module,
	statistics.Module,
	sweeper.Module,
)

// Module is the API server: CoreModule plus HTTP routes and the recovery sweep.
var Module = fx.Options(
	CoreModule,
	notificationhandler.Module,
	server.Module,
	sweeper.ScheduleModule,
)
