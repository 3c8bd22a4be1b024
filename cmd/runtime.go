package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"adwise/src/core/artifact"
	"adwise/src/core/connection"
	"adwise/src/core/distribution"
	"adwise/src/core/job"
	"adwise/src/infrastructure/events"
	distclient "adwise/src/infrastructure/integrations/distribution"
	"adwise/src/infrastructure/integrations/generation"
	"adwise/src/log"
	"adwise/src/storage/kvstore"
	"adwise/src/storage/minioctrl"
)

// runtime holds the components one command invocation works with
type runtime struct {
	store       kvstore.Store
	bus         *events.Bus
	wmLogger    watermill.LoggerAdapter
	generation  *generation.Client
	coordinator *job.Coordinator
	dispatcher  *distribution.Dispatcher
	tracker     *connection.Tracker
	archiver    *artifact.Archiver
	archiving   bool
}

type runtimeOptions struct {
	// withArchive connects MinIO even when minio.enabled is false
	withArchive bool
}

func newRuntime(opts runtimeOptions) (*runtime, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}

	wmLogger := watermill.NewStdLogger(viper.GetBool("log.development"), false)
	bus, err := events.Open(viper.GetString("events.driver"), viper.GetString("amqp.url"), wmLogger)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	httpClient := &http.Client{Timeout: viper.GetDuration("http.timeout")}
	gen := generation.NewClient(viper.GetString("generation.url"), httpClient)
	dist := distclient.NewClient(viper.GetString("distribution.url"), httpClient)

	jobOpts := []job.Option{job.WithPollInterval(viper.GetDuration("poll.interval"))}
	var distOpts []distribution.Option
	if bus.Enabled() {
		publisher := events.NewPublisher(bus.Publisher, wmLogger)
		jobOpts = append(jobOpts, job.WithNotifier(publisher))
		distOpts = append(distOpts, distribution.WithNotifier(publisher))
	}

	coordinator := job.NewCoordinator(store, gen, jobOpts...)
	dispatcher, err := distribution.NewDispatcher(store, coordinator, dist, distOpts...)
	if err != nil {
		coordinator.Close()
		bus.Close()
		closeStore(store)
		return nil, err
	}

	rt := &runtime{
		store:       store,
		bus:         bus,
		wmLogger:    wmLogger,
		generation:  gen,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		tracker: connection.NewTracker(store,
			connection.WithRefreshInterval(viper.GetDuration("connections.refresh_interval"))),
	}

	var sink artifact.Sink
	if opts.withArchive || viper.GetBool("minio.enabled") {
		minioService, err := minioctrl.NewMinioService(
			viper.GetString("minio.endpoint"),
			viper.GetString("minio.access_key"),
			viper.GetString("minio.secret_key"),
			viper.GetBool("minio.use_ssl"),
		)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to initialize minio service: %w", err)
		}
		sink = minioService
		rt.archiving = true
	}
	rt.archiver = artifact.NewArchiver(coordinator, gen, sink, viper.GetString("minio.artifact_bucket"))

	return rt, nil
}

func (rt *runtime) Close() {
	rt.tracker.Stop()
	rt.coordinator.Close()
	if err := rt.bus.Close(); err != nil {
		log.Error(err, "Error closing event bus")
	}
	closeStore(rt.store)
}

func openStore() (kvstore.Store, error) {
	driver := viper.GetString("store.driver")
	dsn := viper.GetString("store.dsn")
	if driver == kvstore.DriverPostgres && dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			viper.GetString("postgres.host"),
			viper.GetString("postgres.user"),
			viper.GetString("postgres.password"),
			viper.GetString("postgres.db"),
			viper.GetString("postgres.port"))
	}

	store, err := kvstore.Open(kvstore.Config{
		Driver:  driver,
		Dir:     viper.GetString("store.dir"),
		Profile: viper.GetString("store.profile"),
		DSN:     dsn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

func closeStore(store kvstore.Store) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error(err, "Error closing state store")
		}
	}
}

// resumeCompleted resumes the persisted job and waits until it settles. It is
// used by commands that need a completed job in a fresh process.
func (rt *runtime) resumeCompleted(ctx context.Context, cmd *cobra.Command) (job.Job, error) {
	if err := rt.coordinator.Resume(); err != nil {
		return job.Job{}, err
	}
	return waitForJob(ctx, cmd, rt.coordinator)
}

// waitForJob shows a spinner on stderr until the job leaves Submitting and Polling
func waitForJob(ctx context.Context, cmd *cobra.Command, c *job.Coordinator) (job.Job, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("waiting for job"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		changed := c.Changes()
		j := c.Job()
		if j.State != job.StateSubmitting && j.State != job.StatePolling {
			return j, nil
		}
		bar.Describe(fmt.Sprintf("job %s %s", j.ID, j.State))

		select {
		case <-changed:
		case <-ticker.C:
			bar.Add(1)
		case <-ctx.Done():
			return j, ctx.Err()
		}
	}
}

func printJob(cmd *cobra.Command, j job.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "state: %s\n", j.State)
	if j.ID != "" {
		fmt.Fprintf(out, "job: %s\n", j.ID)
	}
	if j.ArtifactID != "" {
		fmt.Fprintf(out, "artifact: %s\n", j.ArtifactID)
	}
	if j.Failure != nil {
		fmt.Fprintf(out, "failure: %s (%s)\n", j.Failure.Kind, j.Failure.Reason())
	}
}
