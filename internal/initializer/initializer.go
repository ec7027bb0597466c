package initializer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"golang.org/x/sync/errgroup"

	"github.com/seaquake/bitsync/internal/bitget"
	"github.com/seaquake/bitsync/internal/collector"
	"github.com/seaquake/bitsync/internal/config"
	"github.com/seaquake/bitsync/internal/connector"
	"github.com/seaquake/bitsync/internal/storage"
	"github.com/seaquake/bitsync/internal/syncer"
)

// Options are the runtime choices supplied on the command line.
type Options struct {
	Mode          collector.Mode
	ExplicitStart *time.Time

	// Interval > 0 keeps the app running and starts a new cycle every
	// interval. Zero means run one cycle and exit.
	Interval time.Duration
}

// cycleRunner is the orchestration capability the scheduler drives.
type cycleRunner interface {
	RunCycle(ctx context.Context, mode collector.Mode, explicitStart *time.Time) error
}

// runCycles executes one cycle, or keeps cycling on the configured interval.
// A failed cycle is already logged and recorded as an ERROR run, so in
// interval mode the scheduler waits for the next tick instead of exiting;
// only a one-shot run surfaces the error to the caller.
func runCycles(ctx context.Context, coll cycleRunner, opts Options) error {
	mode, explicit := opts.Mode, opts.ExplicitStart
	for {
		err := coll.RunCycle(ctx, mode, explicit)
		if err != nil && errors.Is(err, context.Canceled) {
			return nil
		}
		if opts.Interval < 1 {
			return err
		}
		if err != nil {
			log.Error().Err(err).Msg("cycle failed, waiting for next interval")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.Interval):
		}
		// Only the first cycle honors the initial mode, later ones resume
		// from the stored cursors.
		mode = collector.ModeUpdate
		explicit = nil
	}
}

// Start will initialize various required systems and then execute the app.
func Start(mainCtx context.Context, cfg *config.Config, opts Options) error {

	// Setting up logger.
	// If the path given in the config for logging ends with .log then create a log file with the same name and
	// write log messages to it. Otherwise, create a new log file with a timestamp attached to it's name in the given path.
	var (
		logFile *os.File
		err     error
	)
	if strings.HasSuffix(cfg.Log.FilePath, ".log") {
		logFile, err = os.OpenFile(cfg.Log.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return fmt.Errorf("not able to open or create log file: %v", cfg.Log.FilePath)
		}
	} else {
		logFile, err = os.Create(cfg.Log.FilePath + "_" + strconv.Itoa(int(time.Now().Unix())) + ".log")
		if err != nil {
			return fmt.Errorf("not able to create log file: %v", cfg.Log.FilePath+"_"+strconv.Itoa(int(time.Now().Unix()))+".log")
		}
	}
	defer logFile.Close()

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	switch cfg.Log.Level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	fileLogger := zerolog.New(logFile).With().Timestamp().Logger()
	log.Logger = fileLogger
	log.Info().Msg("logger setup is done")

	// Establish connections to the configured storage system and the REST
	// connector.
	var store storage.Store
	switch cfg.Storage {
	case "mysql":
		store, err = storage.InitMySQL(&cfg.Connection.MySQL)
		if err != nil {
			err = errors.Wrap(err, "mysql connection")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		log.Info().Msg("mysql connected")
	case "elastic_search":
		store, err = storage.InitElasticSearch(&cfg.Connection.ES)
		if err != nil {
			err = errors.Wrap(err, "elastic search connection")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		log.Info().Msg("elastic search connected")
	case "jsonfile":
		store, err = storage.InitJSONFile(&cfg.Connection.JSONFile)
		if err != nil {
			err = errors.Wrap(err, "jsonfile storage")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		log.Info().Msg("jsonfile storage ready")
	default:
		err = fmt.Errorf("unknown storage: %v", cfg.Storage)
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}
	defer store.Close()

	rest := connector.InitREST(&cfg.Connection.REST)

	client := bitget.NewClient(&cfg.Exchange, &cfg.Sync, rest)
	coll := collector.New(syncer.New(client, store, &cfg.Sync), store, cfg)

	// Run cycles until the context is cancelled. A cancelled interval wait
	// exits cleanly.
	appErrGroup, appCtx := errgroup.WithContext(mainCtx)

	appErrGroup.Go(func() error {
		return runCycles(appCtx, coll, opts)
	})

	err = appErrGroup.Wait()
	if err != nil {
		log.Error().Msg("exiting the app")
		return err
	}
	return nil
}
