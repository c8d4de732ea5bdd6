package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/stefando/lfsS3/internal/api"
	"github.com/stefando/lfsS3/internal/auth"
	"github.com/stefando/lfsS3/internal/batch"
	"github.com/stefando/lfsS3/internal/completion"
	"github.com/stefando/lfsS3/internal/config"
	"github.com/stefando/lfsS3/internal/locks"
	"github.com/stefando/lfsS3/internal/lockstore"
	"github.com/stefando/lfsS3/internal/logging"
	"github.com/stefando/lfsS3/internal/metrics"
	"github.com/stefando/lfsS3/internal/objectstore"
)

const shutdownTimeout = 10 * time.Second

// backend is the storage the server runs against
type backend struct {
	objects objectstore.ObjectStore
	buckets objectstore.Provider
	locks   lockstore.LockStore
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// openBackend selects the object and lock stores. Static S3 keys select
// minio-go; otherwise the AWS SDK is used, optionally against S3Endpoint.
// Locks go to DynamoDB when a table is named and to SQLite otherwise.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		loaded, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		awsCfg = &loaded
		return loaded, nil
	}

	if cfg.S3Endpoint != "" && cfg.S3AccessKey != "" {
		store, err := objectstore.NewMinioStore(objectstore.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.S3UseSSL,
		}, cfg.BucketName)
		if err != nil {
			return nil, err
		}
		b.objects, b.buckets = store, store
	} else {
		loaded, err := loadAWS()
		if err != nil {
			return nil, err
		}
		var opts []objectstore.S3Option
		if cfg.S3Endpoint != "" {
			opts = append(opts, objectstore.WithEndpoint(endpointURL(cfg.S3Endpoint, cfg.S3UseSSL)))
		}
		if signing := cfg.Signing(); signing.Enabled() {
			opts = append(opts, objectstore.WithSigningCredentials(objectstore.NewSigningCredentials(loaded, signing)))
		}
		store := objectstore.NewS3Store(loaded, cfg.BucketName, opts...)
		b.objects, b.buckets = store, store
	}

	if cfg.TableName != "" {
		loaded, err := loadAWS()
		if err != nil {
			return nil, err
		}
		b.locks = lockstore.NewDynamoStore(dynamodb.NewFromConfig(loaded), cfg.TableName, cfg.IDIndexName)
		return b, nil
	}

	store, err := lockstore.OpenSQLite(ctx, cfg.LockDB)
	if err != nil {
		return nil, err
	}
	b.locks = store
	b.closers = append(b.closers, store.Close)
	return b, nil
}

// endpointURL adds a scheme to a host:port endpoint
func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// newAuthenticator prefers the static user list and falls back to Cognito
func newAuthenticator(ctx context.Context, cfg *config.Config) (*auth.Authenticator, error) {
	if cfg.Users != "" {
		users, err := auth.ParseStaticUsers(cfg.Users)
		if err != nil {
			return nil, err
		}
		return auth.NewAuthenticator(users, nil), nil
	}

	if err := cfg.Require(config.KeyUserPoolID, config.KeyUserPoolClientID); err != nil {
		return nil, fmt.Errorf("no static users configured and %w", err)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	passwords := auth.NewCognitoValidator(awsCfg, cfg.UserPoolID, cfg.UserPoolClientID)

	var tokens auth.TokenVerifier
	verifier, err := auth.NewBearerVerifier(ctx, auth.CognitoIssuer(awsCfg.Region, cfg.UserPoolID), cfg.UserPoolClientID)
	if err != nil {
		slog.WarnContext(ctx, "Bearer token authentication disabled", "error", err)
	} else {
		tokens = verifier
	}
	return auth.NewAuthenticator(passwords, tokens), nil
}

// newHandler builds the router with metrics registered on reg
func newHandler(b *backend, authenticate func(http.Handler) http.Handler, cfg *config.Config, reg *prometheus.Registry) (http.Handler, error) {
	observer, err := metrics.New("lfs", reg)
	if err != nil {
		return nil, err
	}

	routes := api.Config{
		Engine: batch.NewEngine(b.objects,
			batch.WithCompletionSuffix(cfg.CompletionSuffix),
			batch.WithObserver(observer)),
		Locks:        locks.NewManager(b.locks, locks.WithObserver(observer)),
		Authenticate: authenticate,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	if cfg.WebhookToken != "" {
		h := completion.NewHandler(b.buckets,
			completion.WithSuffix(cfg.CompletionSuffix),
			completion.WithObserver(observer))
		routes.Completion = api.CompletionWebhook(h, cfg.WebhookToken)
	}
	return api.NewRouter(routes), nil
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		return err
	}
	if err := cfg.Require(config.KeyBucketName); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	authenticator, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler, err := newHandler(b, auth.Middleware(authenticator), cfg, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting LFS server", "addr", cfg.ListenAddr, "bucket", cfg.BucketName)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down LFS server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
