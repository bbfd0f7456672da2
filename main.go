package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tokenwell/tokenwell/well"
	"github.com/tokenwell/tokenwell/well/store/dynamo"
	"github.com/tokenwell/tokenwell/well/store/memstore"
	"github.com/tokenwell/tokenwell/well/store/postgres"
)

//setupStore wires the configured storage backend
func setupStore(ctx context.Context, cfg *well.Conf) (well.Store, error) {
	switch cfg.Store {
	case "memory":
		return memstore.New(), nil
	case "postgres":
		return postgres.New(ctx, cfg.PostgresDSN)
	case "dynamo":
		sess, err := session.NewSession(
			&aws.Config{
				Region: aws.String(cfg.AWSRegion),
				Credentials: credentials.NewStaticCredentials(
					cfg.AWSAccessKeyID,
					cfg.AWSSecretAccessKey,
					"",
				),
			},
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to setup aws session")
		}

		return dynamo.New(dynamodb.New(sess), cfg.TokensTableName), nil
	}

	return nil, errors.Errorf("unknown store backend '%s'", cfg.Store)
}

func main() {
	logs, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %+v", err)
	}

	cfg, err := well.ConfFromEnv()
	if err != nil {
		logs.Fatal("failed to process env config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := setupStore(ctx, cfg)
	if err != nil {
		logs.Fatal("failed to setup store", zap.Error(err))
	}

	svc := &well.Services{
		Store: store,
		Logs:  logs,
	}

	//report loaded configuration for debugging purposes
	logs.Info("loaded configuration", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     well.Mux(cfg, svc),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			logs.Error("failed to shut down server", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logs.Fatal("failed to serve", zap.Error(err))
	}
}
