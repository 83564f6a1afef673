package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Daskott/relief/backend"
	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/server/gstorage"
	"github.com/Daskott/relief/server/metrics"
	"github.com/Daskott/relief/server/work"
	"github.com/Daskott/relief/utils"
)

const (
	NOTIFY_REQUESTER_JOB = "notifyRequester"
	BACKUP_SQLITE_JOB    = "backupSqliteDb"
	PURGE_OTP_JOB        = "purgeExpiredOTPs"

	PURGE_OTP_SCHEDULE = "*/15 * * * *"
	LIMITER_IDLE_TTL   = 30 * time.Minute
	JOB_TIMEOUT        = 2 * time.Minute
)

// sqliteBackup uploads the sqlite store file to object storage.
type sqliteBackup struct {
	bucket   gstorage.Bucket
	dbPath   string
	schedule string

	// checkpoint flushes the write ahead log into the db file, when the store
	// supports it.
	checkpoint func(ctx context.Context) error
}

type checkpointer interface {
	Checkpoint(ctx context.Context) error
}

func newSqliteBackup(bucket gstorage.Bucket, b *backend.Backend, schedule string) *sqliteBackup {
	backup := &sqliteBackup{bucket: bucket, dbPath: b.SqlitePath, schedule: schedule}
	if c, ok := b.Store.(checkpointer); ok {
		backup.checkpoint = c.Checkpoint
	}
	return backup
}

func (sb *sqliteBackup) run(ctx context.Context) error {
	if sb.checkpoint != nil {
		if err := sb.checkpoint(ctx); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return sb.bucket.UploadFile(ctx, sb.dbPath)
}

// restoreSqliteDb pulls the last backup down before the store opens, unless a
// local db already exists.
func restoreSqliteDb(ctx context.Context, bucket gstorage.Bucket, dbPath string) error {
	if utils.FileExist(dbPath) {
		logg.Infof("using local sqlite db at %v", dbPath)
		return nil
	}

	err := bucket.DownloadFile(ctx, dbPath)
	if err == gstorage.ErrObjectNotExist {
		logg.Info("no sqlite backup found, starting with an empty db")
		return nil
	}
	return err
}

func (a *App) registerJobHandlers() error {
	if a.workers == nil {
		return nil
	}

	handlers := map[string]work.Handler{
		NOTIFY_REQUESTER_JOB: a.notifyRequester,
		PURGE_OTP_JOB:        a.purgeExpiredOTPs,
	}
	if a.backup != nil {
		handlers[BACKUP_SQLITE_JOB] = a.backupSqliteDb
	}

	for name, handler := range handlers {
		if err := a.workers.Register(name, instrumentJob(name, handler)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) enqueueJobs() error {
	if a.workers == nil {
		return nil
	}

	err := a.workers.PeriodicallyPerform(PURGE_OTP_SCHEDULE, work.JobParams{
		Name:    PURGE_OTP_JOB,
		Handler: PURGE_OTP_JOB,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
	if err != nil {
		return err
	}

	if a.backup == nil {
		return nil
	}

	return a.workers.PeriodicallyPerform(a.backup.schedule, work.JobParams{
		Name:    BACKUP_SQLITE_JOB,
		Handler: BACKUP_SQLITE_JOB,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
}

// enqueueRequesterNotification queues a text to the requester about support's
// new status, when notifications are enabled.
func (a *App) enqueueRequesterNotification(support *models.HelpSupport) {
	if !a.notifyRequesters || a.workers == nil {
		return
	}

	err := a.workers.Perform(work.JobParams{
		Name:    fmt.Sprintf("%v-%v-%v", NOTIFY_REQUESTER_JOB, support.ID, support.Status),
		Handler: NOTIFY_REQUESTER_JOB,
		Unique:  true,
		Args: map[string]interface{}{
			"helpRecordId": support.HelpRecordID,
			"teamId":       support.TeamID,
			"status":       string(support.Status),
		},
	})
	if err != nil {
		logg.Error(err)
	}
}

func (a *App) notifyRequester(args map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), JOB_TIMEOUT)
	defer cancel()

	helpRecordID, _ := args["helpRecordId"].(string)
	teamID, _ := args["teamId"].(string)
	status, _ := args["status"].(string)

	helpRecord, err := a.records.HelpRecords.Get(ctx, helpRecordID)
	if err != nil {
		return err
	}

	team, err := a.records.Teams.Get(ctx, teamID)
	if err != nil {
		return err
	}

	// nothing to tell anyone about once either side is gone
	if helpRecord == nil || team == nil {
		logg.Infof("skipping notification for support %v/%v", helpRecordID, utils.MaskPhone(teamID))
		return nil
	}

	return a.messenger.SendMessage(helpRecord.PhoneNumber, requesterMessage(helpRecord, team, models.SupportStatus(status)))
}

func requesterMessage(helpRecord *models.HelpRecord, team *models.Team, status models.SupportStatus) string {
	info := models.StatusInfo[status]
	return fmt.Sprintf(
		"[relief] %v: %v. Team leader %v can be reached at %v.",
		helpRecord.LocationName,
		info.Label,
		team.TeamLeaderName,
		team.PhoneNumber,
	)
}

func (a *App) purgeExpiredOTPs(args map[string]interface{}) error {
	pruned := a.otpLimiter.prune(LIMITER_IDLE_TTL)
	if pruned > 0 {
		logg.Debugf("pruned %v idle otp rate limiters", pruned)
	}

	if a.otp == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), JOB_TIMEOUT)
	defer cancel()

	purged, err := a.otp.PurgeExpiredCodes(ctx)
	if purged > 0 {
		logg.Infof("purged %v expired verification codes", purged)
	}
	return err
}

func (a *App) backupSqliteDb(args map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), JOB_TIMEOUT)
	defer cancel()

	if _, err := os.Stat(a.backup.dbPath); err != nil {
		return err
	}
	return a.backup.run(ctx)
}

func instrumentJob(name string, handler work.Handler) work.Handler {
	return func(args map[string]interface{}) error {
		err := handler(args)
		metrics.RecordJobRun(name, err)
		return err
	}
}
