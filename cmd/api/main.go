package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"site-creator/handler"
	"site-creator/internal/config"
	"site-creator/internal/integrations/paramstore"
	"site-creator/internal/repository"
	"site-creator/internal/sites"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadAPI(os.Getenv)
	if err != nil {
		fatal("invalid configuration", err)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Project store ----
	var store sites.ProjectStore
	if cfg.UsePostgres() {
		pg, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal("failed to open postgres", err)
		}
		store = pg
	} else {
		dyn, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.ProjectsTable)
		if err != nil {
			fatal("failed to create dynamodb store", err)
		}
		store = dyn
	}

	// ---- Service ----
	opts := []sites.Option{sites.WithSiteDomain(cfg.SiteDomain), sites.WithLogger(logger)}
	if cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			fatal("failed to create SSM client", err)
		}
		opts = append(opts, sites.WithParamStore(ssmClient, cfg.ParamPrefix))
	}
	svc, err := sites.NewService(store, opts...)
	if err != nil {
		fatal("failed to create site service", err)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
