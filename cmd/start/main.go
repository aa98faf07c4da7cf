package start

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/streamvault/bookie/journal"
	"github.com/streamvault/bookie/ledgerdirs"
	"github.com/streamvault/bookie/metrics"
	"github.com/streamvault/bookie/utils"
	"github.com/streamvault/bookie/utils/log"
)

const (
	usage                 = "start"
	short                 = "Start a bookie journal server"
	long                  = "This command starts a bookie journal server"
	example               = "bookie start --config <path>"
	defaultConfigFilePath = "./bookie.yml"
	configDesc            = "set the path for the bookie YAML configuration file"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"boot", "up"},
		Example:    example,
		RunE:       executeStart,
	}
	// configFilePath set flag for a path to the config file.
	configFilePath string
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	utils.InstanceConfig.StartTime = time.Now()
	Cmd.Flags().StringVarP(&configFilePath, "config", "c", defaultConfigFilePath, configDesc)
}

// executeStart implements the start command.
func executeStart(cmd *cobra.Command, _ []string) error {
	// Attempt to read config file.
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to read configuration file error: %w", err)
	}

	// Don't output command usage if args are correct
	cmd.SilenceUsage = true
	log.Info("using %v for configuration", configFilePath)

	if err := utils.InstanceConfig.Parse(data); err != nil {
		return fmt.Errorf("failed to parse configuration file error: %w", err)
	}
	config := &utils.InstanceConfig

	log.Info("initializing bookie...")
	start := time.Now()

	dirs, err := ledgerdirs.New(config.LedgerDirectories)
	if err != nil {
		return fmt.Errorf("failed to set up ledger directories: %w", err)
	}

	j, err := journal.NewJournal(journalConfig(config), dirs)
	if err != nil {
		return fmt.Errorf("failed to set up journal: %w", err)
	}

	// Replay the journal tail before the journal accepts new writes. The
	// replayed records are only counted; nothing here stores them.
	replayed := 0
	err = j.Replay(journal.ScannerFunc(func(version int, offset int64, entry []byte) error {
		replayed++
		return nil
	}))
	if err != nil {
		return fmt.Errorf("journal replay failed: %w", err)
	}
	log.Info("journal replay done, %d entries recovered, mark %v", replayed, j.LastLogMark())

	j.Start()

	startupTime := time.Since(start)
	metrics.StartupTime.Set(startupTime.Seconds())
	log.Info("startup time: %s", startupTime)

	// Periodic checkpointing stands in for the sync thread: each tick
	// checkpoints at the current durable mark and garbage collects the
	// journals below it.
	checkpointQuit := make(chan struct{})
	checkpointDone := make(chan struct{})
	go func() {
		defer close(checkpointDone)
		interval := time.Duration(config.CheckpointIntervalMS) * time.Millisecond
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				ckpt := j.NewCheckpoint()
				if err := j.CheckpointComplete(ckpt, true); err != nil {
					log.Error("checkpoint %v failed: %v", ckpt, err)
				}
			case <-checkpointQuit:
				return
			}
		}
	}()

	// Set monitoring handler.
	log.Info("launching prometheus metrics server...")
	http.Handle("/metrics", promhttp.Handler())

	// Spawn a goroutine and listen for a signal.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-signalChan
		log.Info("initiating graceful shutdown due to '%v' request", s)
		log.Info("waiting a grace period of %v to shutdown...", config.StopGracePeriod)
		time.Sleep(config.StopGracePeriod)
		close(checkpointQuit)
		<-checkpointDone
		j.Shutdown()
		os.Exit(0)
	}()

	log.Info("launching tcp listener for metrics...")
	if err := http.ListenAndServe(":"+config.ListenPort, nil); err != nil {
		return fmt.Errorf("failed to serve metrics - error: %w", err)
	}
	return nil
}

// journalConfig converts the MB/KB config surface into journal.Config bytes.
func journalConfig(c *utils.BookieConfig) journal.Config {
	return journal.Config{
		JournalDir:               c.JournalDirectory,
		MaxJournalSize:           c.MaxJournalSizeMB * 1024 * 1024,
		PreAllocSize:             c.JournalPreAllocSizeMB * 1024 * 1024,
		WriteBufferSize:          c.JournalWriteBufferSizeKB * 1024,
		AlignmentSize:            int64(c.JournalAlignmentSize),
		FormatVersion:            c.JournalFormatVersionToWrite,
		AdaptiveGroupWrites:      c.JournalAdaptiveGroupWrites,
		MaxGroupWait:             time.Duration(c.JournalMaxGroupWaitMS) * time.Millisecond,
		BufferedWritesThreshold:  c.JournalBufferedWritesThreshold,
		BufferedEntriesThreshold: c.JournalBufferedEntriesThreshold,
		FlushWhenQueueEmpty:      c.JournalFlushWhenQueueEmpty,
		RemovePagesFromCache:     c.JournalRemovePagesFromCache,
		MaxBackupJournals:        c.MaxBackupJournals,
		NumCallbackWorkers:       c.NumJournalCallbackThreads,
	}
}
