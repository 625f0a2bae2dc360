package cron

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bher20/enerbill/internal/billing"
	"github.com/bher20/enerbill/internal/metrics"
	"github.com/bher20/enerbill/internal/storage"
)

// RunBatch periodically scans a drop directory for reading export files and
// bulk-loads them through the pgx ingester. An advisory lock keeps multiple
// replicas from loading the same files. Files are named
// <contractID>_<anything>.csv with rows of date,hour,energy and are removed
// after a successful load.
func RunBatch(ctx context.Context, dsn, dir string) error {
	if dir == "" {
		dir = os.Getenv("ENERBILL_BATCH_DIR")
	}
	if dir == "" {
		return fmt.Errorf("batch worker requires a drop directory")
	}

	st, err := storage.Open(ctx, storage.Config{Driver: "postgres", DSN: dsn})
	if err != nil {
		return fmt.Errorf("batch: open storage: %w", err)
	}
	defer st.Close()

	ing, err := storage.OpenReadingIngester(ctx, dsn)
	if err != nil {
		return fmt.Errorf("batch: open ingester: %w", err)
	}
	defer ing.Close()

	intervalSec := 300
	if raw := os.Getenv("ENERBILL_BATCH_INTERVAL_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			intervalSec = v
		}
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	jobName := "batch_ingest"
	const advisoryKey int64 = 13374217

	log.Printf("batch worker starting: interval=%ds dir=%s", intervalSec, dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			started := time.Now()

			gotLock, err := st.AcquireAdvisoryLock(ctx, advisoryKey)
			if err != nil {
				log.Printf("batch: lock acquire error: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				continue
			}
			if !gotLock {
				log.Printf("batch: lock held by another node, skipping this cycle")
				continue
			}

			var runErr error
			func() {
				defer func() {
					if _, err := st.ReleaseAdvisoryLock(ctx, advisoryKey); err != nil {
						log.Printf("batch: lock release error: %v", err)
					}
				}()
				runErr = ingestDir(ctx, ing, dir)
			}()

			total, idle, acquired, _ := ing.PoolStats()
			metrics.UpdateDBPoolMetrics("postgrespool", float64(total), float64(idle), float64(acquired))
			metrics.UpdateJobMetrics(jobName, started, runErr)

			dur := time.Since(started)
			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
				log.Printf("batch: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("batch: run completed with error: %v", runErr)
			} else {
				log.Printf("batch: run completed successfully")
			}
		}
	}
}

func ingestDir(ctx context.Context, ing *storage.ReadingIngester, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return err
	}

	var firstErr error
	for _, path := range files {
		contractID, ok := contractFromFilename(filepath.Base(path))
		if !ok {
			log.Printf("batch: skipping %s: filename does not start with a contract id", path)
			continue
		}

		readings, err := parseReadingsCSV(path)
		if err != nil {
			log.Printf("batch: parse %s failed: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := ing.Ingest(ctx, contractID, readings); err != nil {
			log.Printf("batch: ingest %s failed: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.ReadingsIngestedTotal.WithLabelValues("batch").Add(float64(len(readings)))

		if err := os.Remove(path); err != nil {
			log.Printf("batch: remove %s failed: %v", path, err)
		}
	}
	return firstErr
}

func contractFromFilename(name string) (uint, bool) {
	for i, r := range name {
		if r < '0' || r > '9' {
			if i == 0 {
				return 0, false
			}
			id, err := strconv.ParseUint(name[:i], 10, 32)
			if err != nil {
				return 0, false
			}
			return uint(id), true
		}
	}
	return 0, false
}

// parseReadingsCSV reads date,hour,energy rows. A header row is tolerated.
// Rows failing validation abort the whole file so a bad export is never
// half-loaded.
func parseReadingsCSV(path string) ([]storage.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var readings []storage.Reading
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		// Only a literal header row is skipped; a malformed first data
		// row must reject the file like any other bad row.
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}

		date, err := billing.ParseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", line, rec[0])
		}
		hour, err := strconv.Atoi(rec[1])
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("line %d: bad hour %q", line, rec[1])
		}
		energy, err := strconv.ParseFloat(rec[2], 64)
		if err != nil || math.IsNaN(energy) || math.IsInf(energy, 0) || energy < 0 {
			return nil, fmt.Errorf("line %d: bad energy %q", line, rec[2])
		}

		readings = append(readings, storage.Reading{
			Date:   storage.DateOnly(date),
			Hour:   hour,
			Energy: energy,
		})
	}
	return readings, nil
}
