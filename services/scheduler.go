package services

import (
	"context"
	"fmt"
	"time"

	"backend_panelhub/config"
	"backend_panelhub/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DigestScheduler раз в день собирает сводку по срокам и отправляет ее оператору
type DigestScheduler struct {
	cron          *cron.Cron
	subscriptions *SubscriptionService
	panels        *PanelService
	notifier      Notifier
	clock         Clock
	cfg           config.SchedulerConfig
	panelDays     int
	observer      DigestObserver
	log           *zap.Logger
}

// DigestObserver получает итог каждого запуска сводки
type DigestObserver interface {
	ObserveDigest(digest *Digest, err error)
}

// NewDigestScheduler создает планировщик ежедневной сводки
func NewDigestScheduler(cfg *config.Config, subscriptions *SubscriptionService, panels *PanelService, notifier Notifier, clock Clock, log *zap.Logger) *DigestScheduler {
	return &DigestScheduler{
		cron:          cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
		subscriptions: subscriptions,
		panels:        panels,
		notifier:      notifier,
		clock:         clock,
		cfg:           cfg.Scheduler,
		panelDays:     cfg.Ledger.PanelAlertDays,
		log:           logger.OrNop(log).Named("scheduler"),
	}
}

// SetObserver подключает получателя итогов сводки, например метрики
func (ds *DigestScheduler) SetObserver(observer DigestObserver) {
	ds.observer = observer
}

// Start регистрирует задачу и запускает планировщик
func (ds *DigestScheduler) Start() error {
	_, err := ds.cron.AddFunc(ds.cfg.DigestCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := ds.RunDigest(ctx); err != nil {
			ds.log.Error("Ошибка ежедневной сводки", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("неверное cron выражение %q: %w", ds.cfg.DigestCron, err)
	}

	ds.cron.Start()
	ds.log.Info("Планировщик сводки запущен", zap.String("cron", ds.cfg.DigestCron))
	return nil
}

// Stop останавливает планировщик и ждет завершения текущей задачи
func (ds *DigestScheduler) Stop() {
	<-ds.cron.Stop().Done()
	ds.log.Info("Планировщик сводки остановлен")
}

// RunDigest собирает сводку и отправляет ее, если есть о чем сообщить
func (ds *DigestScheduler) RunDigest(ctx context.Context) (*Digest, error) {
	digest, err := ds.runDigest(ctx)
	if ds.observer != nil {
		ds.observer.ObserveDigest(digest, err)
	}
	return digest, err
}

func (ds *DigestScheduler) runDigest(ctx context.Context) (*Digest, error) {
	digest := &Digest{Date: Today(ds.clock)}

	if ds.cfg.PersistExpiry {
		marked, err := ds.subscriptions.MarkExpired()
		if err != nil {
			return nil, err
		}
		digest.MarkedExpired = marked
	}

	var err error
	if digest.Expiring, err = ds.subscriptions.ExpiringWithin(ds.cfg.WarningDays); err != nil {
		return nil, err
	}
	if digest.Overdue, err = ds.subscriptions.Overdue(); err != nil {
		return nil, err
	}
	if digest.ExpiringPanels, err = ds.panels.ExpiringPanels(ds.panelDays); err != nil {
		return nil, err
	}

	if digest.IsEmpty() && digest.MarkedExpired == 0 {
		ds.log.Info("Сводка пуста, уведомление не отправлено")
		return digest, nil
	}

	if err := ds.notifier.Notify(ctx, digest.Render()); err != nil {
		return digest, fmt.Errorf("ошибка отправки сводки: %w", err)
	}

	ds.log.Info("Сводка отправлена",
		zap.Int("expiring", len(digest.Expiring)),
		zap.Int("overdue", len(digest.Overdue)),
		zap.Int("panels", len(digest.ExpiringPanels)))
	return digest, nil
}
