package services

import (
	"context"
	"fmt"
	"time"

	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/instagram"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/internal/telemetry"
	"social-autoreply-platform/utils"

	"github.com/go-co-op/gocron"
)

// TokenRefresher exchanges a long-lived token for a fresh one.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, accessToken string) (*instagram.RefreshedToken, error)
}

// CredentialRefresher keeps tenant access tokens from expiring.
type CredentialRefresher struct {
	store     database.TenantRepository
	refresher TokenRefresher
	window    time.Duration
	metrics   *telemetry.Metrics
}

func NewCredentialRefresher(store database.TenantRepository, refresher TokenRefresher, window time.Duration, metrics *telemetry.Metrics) *CredentialRefresher {
	return &CredentialRefresher{store: store, refresher: refresher, window: window, metrics: metrics}
}

// RefreshExpiring refreshes every credential expiring within the window.
// One tenant's failure does not stop the sweep.
func (r *CredentialRefresher) RefreshExpiring(ctx context.Context) (refreshed, failed int, err error) {
	now := time.Now()
	tenants, err := r.store.ListTenantsExpiringBefore(ctx, now.Add(r.window))
	if err != nil {
		return 0, 0, fmt.Errorf("list expiring tenants: %w", err)
	}

	for _, tenant := range tenants {
		tok, err := r.refresher.RefreshToken(ctx, tenant.AccessToken)
		if err == nil {
			err = r.store.UpdateCredential(ctx, tenant.ID, tok.AccessToken, tok.TokenType, tok.ExpiresAt(now))
		}
		r.metrics.RecordCredentialRefresh(err == nil)

		if err != nil {
			failed++
			logger.Error("Credential refresh failed",
				"tenant_id", tenant.ID.Hex(),
				"access_token", utils.RedactToken(tenant.AccessToken),
				"error", err,
			)
			continue
		}
		refreshed++
	}

	logger.Info("Credential refresh sweep finished", "candidates", len(tenants), "refreshed", refreshed, "failed", failed)
	return refreshed, failed, nil
}

// CronService runs the periodic jobs.
type CronService struct {
	scheduler *gocron.Scheduler
}

func NewCronService() *CronService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()
	return &CronService{scheduler: s}
}

// ScheduleCredentialRefresh registers the refresher under cronExpr.
func (c *CronService) ScheduleCredentialRefresh(cronExpr string, r *CredentialRefresher) error {
	_, err := c.scheduler.Cron(cronExpr).Tag("credential-refresh").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, _, err := r.RefreshExpiring(ctx); err != nil {
			logger.Error("Credential refresh job failed", "error", err)
		}
	})
	return err
}

func (c *CronService) Start() {
	logger.Info("Starting cron service", "jobs", len(c.scheduler.Jobs()))
	c.scheduler.StartAsync()
}

func (c *CronService) Stop() {
	logger.Info("Stopping cron service")
	c.scheduler.Stop()
}
