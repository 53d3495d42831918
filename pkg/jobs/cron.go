package jobs

import (
	"context"
	"time"

	"github.com/leadboard/leadboard/pkg/crmsync"
	"github.com/leadboard/leadboard/pkg/leads"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron        *cron.Cron
	leadService *leads.Service
	syncService *crmsync.Service
	logger      logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(leadService *leads.Service, syncService *crmsync.Service, log logger.Logger) *CronManager {
	return &CronManager{
		cron:        cron.New(),
		leadService: leadService,
		syncService: syncService,
		logger:      log,
	}
}

// SetupJobs configures all scheduled jobs. Retry policy for individual
// failures stays "manual user retry"; this job only re-attempts leads that
// never synced at all.
func (cm *CronManager) SetupJobs(schedule string) error {
	_, err := cm.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		unsynced, err := cm.leadService.Unsynced(ctx, 100)
		if err != nil {
			cm.logger.Error("failed to load unsynced leads", "error", err)
			return
		}
		if len(unsynced) == 0 {
			return
		}

		cm.logger.Info("retrying CRM sync", "leads", len(unsynced))
		synced := 0
		for _, lead := range unsynced {
			if err := cm.syncService.SyncLead(ctx, lead); err != nil {
				cm.logger.Warn("CRM sync retry failed", "lead_id", lead.ID, "error", err)
				continue
			}
			synced++
		}
		cm.logger.Info("CRM sync retry finished", "synced", synced, "of", len(unsynced))
	})
	return err
}

// Start begins running scheduled jobs
func (cm *CronManager) Start() {
	cm.cron.Start()
}

// Stop halts the scheduler, waiting for running jobs
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
}
