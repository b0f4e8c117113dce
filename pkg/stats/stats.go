package stats

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	BYTE = 1 << (10 * iota)
	KILOBYTE
	MEGABYTE
	GIGABYTE
	TERABYTE
)

const (
	SourcePull   = "pull"
	SourcePush   = "push"
	SourceDetail = "detail"
)

var (
	// MergedObservations counts the observations merged into the ledger view,
	// labeled by the path they came from.
	MergedObservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notary",
		Name:      "merged_observations_total",
		Help:      "Number of transaction observations merged into the ledger view.",
	}, []string{"source"})
	// StatusChanges counts the transitions notified to subscribers, labeled by
	// the new status.
	StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notary",
		Name:      "status_changes_total",
		Help:      "Number of transaction status changes.",
	}, []string{"status"})
	// FailedQueries counts the pull queries that failed.
	FailedQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notary",
		Name:      "failed_queries_total",
		Help:      "Number of failed pull queries to the ledger service.",
	})
	// TrackedAddresses is the number of addresses with a merge table.
	TrackedAddresses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notary",
		Name:      "tracked_addresses",
		Help:      "Number of addresses currently tracked.",
	})
	// OpenSessions is the number of open registration sessions.
	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notary",
		Name:      "open_sessions",
		Help:      "Number of open registration sessions.",
	})
)

// EnableMemoryStatistics enables go routine that periodically prints memory
// usage of the go process. Once ctx is done, the default prometheus metrics
// are dumped to a stats file in datadir.
func EnableMemoryStatistics(
	ctx context.Context, interval time.Duration, datadir string,
) {
	ticker := time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				PrintMemoryStatistics()
				PrintNumOfRoutines()
			case <-ctx.Done():
				ticker.Stop()
				if err := DumpPrometheusDefaults(datadir); err != nil {
					log.WithError(err).Warn("failed to dump stats")
				}
				return
			}
		}
	}()
}

// toGigabytes returns given memory in bytes to gigabytes.
func toGigabytes(bytes uint64) float64 {
	return float64(bytes) / GIGABYTE
}

// PrintMemoryStatistics prints memory statistics using go runtime library.
func PrintMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Infof(
		"Total allocated: %.3fGB, Heap allocated: %.3fGB, "+
			"Allocated objects count: %v, Freed objects count: %v",
		toGigabytes(memStats.TotalAlloc),
		toGigabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
	)
}

// DumpPrometheusDefaults write default Prometheus metrics to a file
func DumpPrometheusDefaults(datadir string) error {
	file, err := os.OpenFile(
		filepath.Join(datadir, "stats"),
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := bufio.NewWriter(file)

	metricFamily, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, v := range metricFamily {
		if _, err := writer.WriteString(v.String() + "\n"); err != nil {
			return err
		}
	}

	return writer.Flush()
}

// PrintNumOfRoutines prints number of go routines currently running
func PrintNumOfRoutines() {
	log.Infof("Num of go routines: %v", runtime.NumGoroutine())
}
