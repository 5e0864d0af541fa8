package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/samuel/go-metrics/metrics"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/dal"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/download"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/events"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/extract"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/pipeline"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/server"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/transcribe"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/worker"
	"github.com/quickscribe/backend/libs/awsutil"
	"github.com/quickscribe/backend/libs/boot"
	"github.com/quickscribe/backend/libs/dbutil"
	"github.com/quickscribe/backend/libs/golog"
	"github.com/quickscribe/backend/libs/storage"
	libworker "github.com/quickscribe/backend/libs/worker"
)

var (
	flagListenAddr = flag.String("listen_addr", ":8080", "host:port to listen for http requests")
	flagNumWorkers = flag.Int("num_workers", 2, "number of pipeline workers to run")
	flagScratchDir = flag.String("scratch_dir", "", "directory for scratch media files (default system temp)")

	// database
	flagDBHost     = flag.String("db_host", "", "database host")
	flagDBPort     = flag.Int("db_port", 3306, "database port")
	flagDBName     = flag.String("db_name", "transcription", "database name")
	flagDBUsername = flag.String("db_username", "", "database username")
	flagDBPassword = flag.String("db_password", "", "database password")

	// AWS
	flagAWSRegion       = flag.String("aws_region", "us-east-1", "aws region")
	flagAWSAccessKey    = flag.String("aws_access_key", "", "aws access key id (empty to use environment or role)")
	flagAWSSecretKey    = flag.String("aws_secret_key", "", "aws secret access key")
	flagStorageBucket   = flag.String("storage_bucket", "", "s3 bucket for uploaded media")
	flagStoragePrefix   = flag.String("storage_prefix", "media", "s3 key prefix for uploaded media")
	flagTriggerQueueURL = flag.String("sqs_trigger_url", "", "sqs url for pipeline trigger messages")
	flagEventsTopicARN  = flag.String("sns_events_arn", "", "sns topic arn for job completion events (empty to disable)")

	// transcription provider
	flagProviderAPIKey        = flag.String("provider_api_key", "", "transcription provider api key")
	flagProviderBaseURL       = flag.String("provider_base_url", "", "transcription provider base url (empty for default)")
	flagProviderDiarize       = flag.Bool("provider_diarize", false, "request speaker diarization")
	flagProviderFastModel     = flag.String("provider_fast_model", "", "provider model for fast mode (empty for default)")
	flagProviderAccurateModel = flag.String("provider_accurate_model", "", "provider model for accurate mode (empty for default)")

	// external tools
	flagFFMPEGPath = flag.String("ffmpeg_path", "ffmpeg", "path to the ffmpeg binary")
	flagYTDLPPath  = flag.String("ytdlp_path", "yt-dlp", "path to the yt-dlp binary")
)

func main() {
	boot.ParseFlags("TRANSCRIPTION_")

	if *flagStorageBucket == "" {
		golog.Fatalf("Storage bucket not configured")
	}
	if *flagTriggerQueueURL == "" {
		golog.Fatalf("Trigger queue URL not configured")
	}

	awsConfig, err := awsutil.Config(*flagAWSRegion, *flagAWSAccessKey, *flagAWSSecretKey, "")
	if err != nil {
		golog.Fatalf("Unable to create AWS config: %s", err)
	}
	awsSession := session.New(awsConfig)

	db, err := dbutil.ConnectMySQL(&dbutil.DBConfig{
		Host:     *flagDBHost,
		Port:     *flagDBPort,
		Name:     *flagDBName,
		User:     *flagDBUsername,
		Password: *flagDBPassword,
	})
	if err != nil {
		golog.Fatalf("Unable to connect to database: %s", err)
	}
	dl := dal.New(db)

	store := storage.NewS3(awsSession, *flagStorageBucket, *flagStoragePrefix)
	sqsAPI := sqs.New(awsSession)

	transcriber, err := transcribe.New(transcribe.Config{
		APIKey:        *flagProviderAPIKey,
		BaseURL:       *flagProviderBaseURL,
		FastModel:     *flagProviderFastModel,
		AccurateModel: *flagProviderAccurateModel,
		Diarize:       *flagProviderDiarize,
	})
	if err != nil {
		golog.Fatalf("Unable to create transcription client: %s", err)
	}

	var publisher *events.Publisher
	if *flagEventsTopicARN != "" {
		publisher = events.NewPublisher(sns.New(awsSession), *flagEventsTopicARN)
	}

	pipe := pipeline.New(
		dl,
		store,
		extract.New(*flagFFMPEGPath),
		download.New(*flagYTDLPPath, nil),
		transcriber,
		publisher,
		nil,
		*flagScratchDir,
	)

	metricsRegistry := metrics.NewRegistry()
	workers := &libworker.Collection{}
	for i := 0; i < *flagNumWorkers; i++ {
		workers.AddWorker(worker.New(sqsAPI, *flagTriggerQueueURL, pipe, metricsRegistry.Scope("worker")))
	}
	workers.Start()
	defer workers.Stop(time.Second * 30)

	h := server.New(&server.Config{
		DAL:      dl,
		Store:    store,
		Enqueuer: events.NewEnqueuer(sqsAPI, *flagTriggerQueueURL),
	})
	go func() {
		golog.Infof("Listening on %s", *flagListenAddr)
		if err := http.ListenAndServe(*flagListenAddr, h); err != nil {
			golog.Fatalf("HTTP server failed: %s", err)
		}
	}()

	boot.WaitForTermination()
}
