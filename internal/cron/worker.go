package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bher20/enerbill/internal/billing"
	"github.com/bher20/enerbill/internal/metrics"
	"github.com/bher20/enerbill/internal/notification"
	"github.com/bher20/enerbill/internal/storage"
)

const (
	jobName  = "bill_snapshots"
	lockKey  = int64(4217)
	interval = "snapshot_interval_seconds"
)

// Run starts the snapshot worker. On each run it recomputes the current
// month's cost for every contract and stores the result as a bill snapshot,
// so dashboards and notifications read a precomputed payload instead of
// pricing raw readings on every request. An advisory lock keeps the job
// single-flight when several instances share a Postgres backend.
func Run(ctx context.Context, driver, dsn, initialInterval string) error {
	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	svc := billing.NewService(st)
	notif := notification.NewService(st)

	intervalSetting := "3600"
	if initialInterval != "" {
		intervalSetting = initialInterval
	}
	if val, err := st.GetSetting(ctx, interval); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	// The interval setting is either integer seconds or a cron expression.
	getNextRun := func(setting string, lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(time.Hour)
	}

	nextRun := time.Now()

	log.Printf("snapshot worker starting, initial setting=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, interval); err == nil && val != "" && val != intervalSetting {
				log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
				intervalSetting = val
				nextRun = getNextRun(intervalSetting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			ok, err := st.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}
			if !ok {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}

			var runErr error
			func() {
				defer func() {
					if _, err := st.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()
				runErr = SnapshotAll(ctx, st, svc, notif, time.Now())
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, dur)
			}

			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}

// SnapshotAll computes and stores the reference month's cost for every
// contract reachable through a registered user. Contracts without a rate or
// with invalid readings are skipped; the first such error is reported after
// the remaining contracts have been processed. When notif is non-nil and
// the user has an email address, each stored snapshot is also mailed out.
func SnapshotAll(ctx context.Context, st storage.Storage, svc *billing.Service, notif *notification.Service, ref time.Time) error {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	month := ref.Format("2006-01")
	date := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location()).Format("2006-01-02")

	mailBills := false
	if notif != nil {
		if cfg, err := notif.GetConfig(ctx); err == nil && cfg != nil && cfg.Enabled {
			mailBills = true
		}
	}

	seen := make(map[uint]bool)
	var firstErr error
	for _, u := range users {
		if u.AccountID == 0 || seen[u.AccountID] {
			continue
		}
		seen[u.AccountID] = true

		contracts, err := st.ListContractsByUser(ctx, u.AccountID, true)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, c := range contracts {
			cost, err := svc.MonthlyCost(ctx, c.ID, u.AccountID, date)
			if err != nil {
				// A contract with no readings this month is idle, not broken.
				if errors.Is(err, billing.ErrNotFound) {
					continue
				}
				log.Printf("cron: snapshot contract %d failed: %v", c.ID, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			payload, err := json.Marshal(cost)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			snap := storage.BillSnapshot{
				ContractID: c.ID,
				Month:      month,
				Payload:    payload,
				ComputedAt: time.Now(),
			}
			if err := st.SaveBillSnapshot(ctx, snap); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if mailBills && u.Email != "" {
				// Mail failures don't fail the run; the snapshot is stored.
				if err := notif.SendMonthlyBill(ctx, u.Email, c, month); err != nil {
					log.Printf("cron: mail bill for contract %d to %s failed: %v", c.ID, u.Email, err)
				}
			}
		}
	}
	return firstErr
}
