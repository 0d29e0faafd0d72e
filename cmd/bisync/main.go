// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/locator"
	"github.com/navwar/bisync/pkg/log"
	"github.com/navwar/bisync/pkg/rules"
	"github.com/navwar/bisync/pkg/s3fs"
	"github.com/navwar/bisync/pkg/store"
	"github.com/navwar/bisync/pkg/ts"
)

const (
	BisyncVersion = "0.1.0"
)

// AWS Flags
const (
	// Profile
	flagAWSProfile       = "aws-profile"
	flagAWSDefaultRegion = "aws-default-region"
	flagAWSRegion        = "aws-region"
	// Credentials
	flagAWSAccessKeyID     = "aws-access-key-id"
	flagAWSSecretAccessKey = "aws-secret-access-key"
	flagAWSSessionToken    = "aws-session-token"
	// Client
	flagAWSRetryMaxAttempts = "aws-retry-max-attempts"
	// TLS
	flagAWSInsecureSkipVerify = "aws-insecure-skip-verify"
	// Miscellaneous
	flagAWSS3Endpoint     = "aws-s3-endpoint"
	flagAWSS3UsePathStyle = "aws-s3-use-path-style"
	flagBucketKeyEnabled  = "aws-bucket-key-enabled"
)

// State Flags
const (
	flagState   = "state"
	flagEnvFile = "env-file"
	flagDebug   = "debug"
)

// Output Flags
const (
	flagTimeLayout = "time-layout"
	flagTimeZone   = "time-zone"
)

// Sync Flags
const (
	flagAll                = "all"
	flagThreads            = "threads"
	flagPartSize           = "part-size"
	flagVerbose            = "verbose"
	flagSmallTime          = "small-time"
	flagIndexSizeThreshold = "index-size-threshold"
	flagCheckpointInterval = "checkpoint-interval"
	flagPropagateDeletes   = "propagate-deletes"
	flagNoCache            = "no-cache"
	flagPath               = "path"
)

// Sync Defaults
const (
	DefaultPartSize = 1_048_576 * 100 // 100 MiB
	MinimumPartSize = 1_048_576 * 5   // 5 MiB
)

// Log Flags
const (
	flagLogPath            = "log-path"
	flagLogFormat          = "log-format"
	flagLogPerm            = "log-perm"
	flagLogClientSigning   = "log-client-signing"
	flagLogClientRequests  = "log-client-requests"
	flagLogClientResponses = "log-client-responses"
	flagLogClientRetries   = "log-client-retries"
)

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".bisync", "state.db")
	}
	return filepath.Join(home, ".bisync", "state.db")
}

func initStateFlags(flag *pflag.FlagSet) {
	flag.String(flagState, defaultStatePath(), "path to the state database holding layers, jobs and indexes")
	flag.String(flagEnvFile, ".env", "path to a file of environment variables loaded before reading flags, if it exists")
	flag.BoolP(flagDebug, "d", false, "print debug messages")
}

// InitAWSFlags initializes the AWS flags.
func initAWSFlags(flag *pflag.FlagSet) {
	// Profile
	flag.String(flagAWSProfile, "default", "AWS Profile")
	flag.String(flagAWSDefaultRegion, "", "AWS Default Region")
	flag.String(flagAWSRegion, "", "AWS Region (overrides default region)")
	// Credentials
	flag.String(flagAWSAccessKeyID, "", "AWS Access Key ID")
	flag.String(flagAWSSecretAccessKey, "", "AWS Secret Access Key")
	flag.String(flagAWSSessionToken, "", "AWS Session Token")
	// Client
	flag.Int(flagAWSRetryMaxAttempts, 5, "the maximum number attempts an AWS API client will call an operation that fails with a retryable error.")
	// TLS
	flag.Bool(flagAWSInsecureSkipVerify, false, "Skip verification of AWS TLS certificate")
	// Misceallenous
	flag.String(flagAWSS3Endpoint, "", "AWS S3 Endpoint URL")
	flag.Bool(flagAWSS3UsePathStyle, false, "Use path-style addressing (default is to use virtual-host-style addressing)")
	flag.Bool(flagBucketKeyEnabled, false, "bucket key enabled")
}

func initOutputFlags(flag *pflag.FlagSet) {
	flag.StringP(flagTimeLayout, "t", "Default", "the layout to use for timestamps.  Use go layout format, or the name of a layout.  Use bisync layouts to show all named layouts.")
	flag.StringP(flagTimeZone, "z", "Local", "the timezone to use for timestamps")
}

func initSyncFlags(flag *pflag.FlagSet) {
	flag.BoolP(flagAll, "a", false, "synchronize every job")
	flag.Int(flagThreads, 1, "maximum number of jobs synchronized in parallel")
	flag.Int(flagPartSize, DefaultPartSize, fmt.Sprintf("size of parts in bytes when transferring to S3 (minimum %d)", MinimumPartSize))
	flag.BoolP(flagVerbose, "v", false, "log every object operation")
	flag.Duration(flagSmallTime, time.Second, "largest difference between two timestamps that are still considered equal")
	flag.Int64(flagIndexSizeThreshold, 0, "only index entries where either side is larger than this many bytes.  Zero indexes every entry.")
	flag.Duration(flagCheckpointInterval, 100*time.Second, "time between commits of the indexes during a run")
	flag.Bool(flagPropagateDeletes, false, "remove entries deleted on one side since the last run instead of copying them back")
	flag.Bool(flagNoCache, false, "resolve the status of every path instead of reusing the status of settled directories")
	flag.String(flagPath, "", "synchronize only the subtree at the path relative to the job roots")
}

func initLogFlags(flag *pflag.FlagSet) {
	flag.String(flagLogPath, "-", "path to the log output.  Defaults to the operating system's stdout device.")
	flag.StringP(flagLogFormat, "f", log.FormatText, "output log format.  Either jsonl or text.")
	flag.String(flagLogPerm, "0600", "file permissions for log output file as unix file mode.")
	flag.Bool(flagLogClientSigning, false, "log AWS client signature requests")
	flag.Bool(flagLogClientRequests, false, "log AWS client requests")
	flag.Bool(flagLogClientResponses, false, "log AWS client responses")
	flag.Bool(flagLogClientRetries, false, "log AWS client retries")
}

func initViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	err := v.BindPFlags(cmd.Flags())
	if err != nil {
		return v, fmt.Errorf("error binding flag set to viper: %w", err)
	}
	// load variables from the env file before reading the environment
	if envFile := v.GetString(flagEnvFile); len(envFile) > 0 {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return v, fmt.Errorf("error loading env file %q: %w", envFile, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv() // set environment variables to overwrite config
	return v, nil
}

func checkLogConfig(v *viper.Viper) error {
	logPath := v.GetString(flagLogPath)
	if len(logPath) == 0 {
		return fmt.Errorf("log path is missing")
	}
	logPerm := v.GetString(flagLogPerm)
	if len(logPerm) == 0 {
		return fmt.Errorf("log perm is missing")
	}
	_, err := strconv.ParseUint(logPerm, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid format for log perm: %s", logPerm)
	}
	if logFormat := v.GetString(flagLogFormat); logFormat != log.FormatText && logFormat != log.FormatJSONL {
		return fmt.Errorf("invalid log format %q, expecting %q or %q", logFormat, log.FormatText, log.FormatJSONL)
	}
	return nil
}

func initLogger(path string, format string, perm string) (*log.SimpleLogger, error) {

	if path == os.DevNull {
		return log.NewSimpleLogger(io.Discard, format)
	}

	if path == "-" {
		return log.NewSimpleLogger(os.Stdout, format)
	}

	fileMode := os.FileMode(0600)

	if len(perm) > 0 {
		fm, err := strconv.ParseUint(perm, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("error parsing file permissions for log file from %q", perm)
		}
		fileMode = os.FileMode(fm)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return nil, fmt.Errorf("error opening log file %q: %w", path, err)
	}

	return log.NewSimpleLogger(f, format)
}

type InitS3ClientInput struct {
	Logger  fs.Logger
	Profile string
	Region  string
	// AWS Client
	Endpoint           string
	InsecureSkipVerify bool
	RetryMaxAttempts   int
	UsePathStyle       bool
	// AWS Credentials
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Client Log Mode
	LogClientSigning   bool
	LogClientRetries   bool
	LogClientRequests  bool
	LogClientResponses bool
}

func InitS3Client(ctx context.Context, input *InitS3ClientInput) *s3.Client {
	clientLogMode := aws.ClientLogMode(0)
	if input.LogClientSigning {
		clientLogMode |= aws.LogSigning
	}
	if input.LogClientRetries {
		clientLogMode |= aws.LogRetries
	}
	if input.LogClientRequests {
		clientLogMode |= aws.LogRequest
	}
	if input.LogClientResponses {
		clientLogMode |= aws.LogResponse
	}

	c := aws.Config{
		ClientLogMode:    clientLogMode,
		RetryMaxAttempts: input.RetryMaxAttempts,
		Region:           input.Region,
		Logger:           log.NewClientLogger(input.Logger),
	}

	if len(input.AccessKeyID) > 0 && len(input.SecretAccessKey) > 0 {
		c.Credentials = credentials.NewStaticCredentialsProvider(
			input.AccessKeyID,
			input.SecretAccessKey,
			input.SessionToken)
	} else {
		sharedConfig, err := config.LoadSharedConfigProfile(ctx, input.Profile)
		if err == nil {
			c.Credentials = credentials.NewStaticCredentialsProvider(
				sharedConfig.Credentials.AccessKeyID,
				sharedConfig.Credentials.SecretAccessKey,
				sharedConfig.Credentials.SessionToken)
			if len(c.Region) == 0 {
				c.Region = sharedConfig.Region
			}
		}
	}

	if input.InsecureSkipVerify {
		c.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
			},
		}
	}

	client := s3.NewFromConfig(c, func(o *s3.Options) {
		o.UsePathStyle = input.UsePathStyle
		if len(input.Endpoint) > 0 {
			o.BaseEndpoint = aws.String(input.Endpoint)
		}
	})

	return client
}

// initOpener returns an opener whose S3 client is created on first use.
func initOpener(v *viper.Viper, logger fs.Logger) *locator.Opener {
	var once sync.Once
	var client *s3.Client
	region := v.GetString(flagAWSRegion)
	if len(region) == 0 {
		region = v.GetString(flagAWSDefaultRegion)
	}
	return locator.NewOpener(&locator.NewOpenerInput{
		ACL:              types.ObjectCannedACLBucketOwnerFullControl,
		BucketKeyEnabled: v.GetBool(flagBucketKeyEnabled),
		ClientFactory: func(ctx context.Context, bucket string) (s3fs.Client, error) {
			once.Do(func() {
				client = InitS3Client(ctx, &InitS3ClientInput{
					Logger:             logger,
					Profile:            v.GetString(flagAWSProfile),
					Region:             region,
					Endpoint:           v.GetString(flagAWSS3Endpoint),
					InsecureSkipVerify: v.GetBool(flagAWSInsecureSkipVerify),
					RetryMaxAttempts:   v.GetInt(flagAWSRetryMaxAttempts),
					UsePathStyle:       v.GetBool(flagAWSS3UsePathStyle),
					AccessKeyID:        v.GetString(flagAWSAccessKeyID),
					SecretAccessKey:    v.GetString(flagAWSSecretAccessKey),
					SessionToken:       v.GetString(flagAWSSessionToken),
					LogClientSigning:   v.GetBool(flagLogClientSigning),
					LogClientRetries:   v.GetBool(flagLogClientRetries),
					LogClientRequests:  v.GetBool(flagLogClientRequests),
					LogClientResponses: v.GetBool(flagLogClientResponses),
				})
			})
			return client, nil
		},
		MaxThreads: v.GetInt(flagThreads) * s3fs.DefaultMaxThreads,
		PartSize:   v.GetInt(flagPartSize),
	})
}

// state is the loaded state database, held under an exclusive lock.
type state struct {
	store  *store.Store
	lock   *flock.Flock
	layers *rules.Registry
	jobs   *job.Registry
}

// openState locks and loads the state database.  Concurrent invocations wait for the lock.
func openState(ctx context.Context, v *viper.Viper) (*state, error) {
	path := v.GetString(flagState)
	if len(path) == 0 {
		return nil, errors.New("state path is missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("error creating directory for state %q: %w", path, err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("error locking state %q: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("error locking state %q", path)
	}
	s, err := store.Open(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	layers, jobs, err := s.Load(ctx)
	if err != nil {
		_ = s.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("error loading state %q: %w", path, err)
	}
	return &state{
		store:  s,
		lock:   lock,
		layers: layers,
		jobs:   jobs,
	}, nil
}

func (s *state) commit(ctx context.Context) error {
	return s.store.Commit(ctx)
}

func (s *state) close() error {
	err := s.store.Close()
	if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

// withState runs fn with the loaded state and commits it afterwards if commit is true.
func withState(cmd *cobra.Command, commit bool, fn func(ctx context.Context, v *viper.Viper, s *state) error) error {
	ctx := cmd.Context()
	v, err := initViper(cmd)
	if err != nil {
		return fmt.Errorf("error initializing viper: %w", err)
	}
	s, err := openState(ctx, v)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()
	if err := fn(ctx, v, s); err != nil {
		return err
	}
	if commit {
		if err := s.commit(ctx); err != nil {
			return fmt.Errorf("error saving state: %w", err)
		}
	}
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func parseTimeFlags(v *viper.Viper) (ts.Layout, *time.Location, error) {
	timeLayout := ts.ParseLayout(v.GetString(flagTimeLayout))
	timeZone, err := ts.ParseLocation(v.GetString(flagTimeZone))
	if err != nil {
		return "", nil, fmt.Errorf("error parsing time zone location %q: %w", v.GetString(flagTimeZone), err)
	}
	return timeLayout, timeZone, nil
}

func main() {
	rootCommand := &cobra.Command{
		Use:                   `bisync [flags]`,
		DisableFlagsInUseLine: true,
		Short: strings.Join([]string{
			"bisync is a command line program for synchronizing pairs of directories in both directions.",
			"Rule layers decide which paths are included, ignored or removed.",
			"Local directories are specified using the \"file://\" scheme or a path without a scheme.",
			"S3 prefixes are specified using the \"s3://\" scheme.",
		}, "\n"),
	}
	initStateFlags(rootCommand.PersistentFlags())

	layoutsCommand := &cobra.Command{
		Use:                   `layouts`,
		DisableFlagsInUseLine: true,
		Short:                 "show supported timestamp layouts",
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(ts.NamedLayouts))
			for name := range ts.NamedLayouts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s: %s\n", name, ts.NamedLayouts[name])
			}
			return nil
		},
	}

	versionCommand := &cobra.Command{
		Use:                   `version`,
		DisableFlagsInUseLine: true,
		Short:                 "show version",
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(BisyncVersion)
			return nil
		},
	}

	rootCommand.AddCommand(
		newLayerCommand(),
		newJobCommand(),
		newIndexCommand(),
		newApplyCommand(),
		newExportCommand(),
		newSyncCommand(),
		layoutsCommand,
		versionCommand)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bisync: "+err.Error())
		fmt.Fprintln(os.Stderr, "Try \"bisync --help\" for more information.")
		stop()
		os.Exit(1)
	}
}
