package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/planloop/internal/api"
	"github.com/planloop/internal/config"
	"github.com/planloop/internal/database"
	"github.com/planloop/internal/gateway"
	"github.com/planloop/internal/logging"
	"github.com/planloop/internal/materializer"
	"github.com/planloop/internal/session"
	"github.com/planloop/internal/store"
)

// ServeCommand returns the CLI command for starting the API server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the PlanLoop API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.General.LogLevel, true)

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	connector, err := gateway.NewConnector(context.Background(), gateway.ConnectorOptions{
		Provider: gateway.Provider(cfg.AI.Provider),
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
		ModelConfig: gateway.ModelConfig{
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create model connector: %w", err)
	}
	log.Info().
		Str("provider", string(connector.GetProvider())).
		Str("model", connector.GetModel()).
		Msg("model connector ready")

	controller := session.NewController(
		store.NewPostgresContextStore(db),
		gateway.NewLangchainGatewayWithDefaults(connector),
		materializer.New(store.NewPostgresActivityStore(db)),
	)

	port := cfg.General.Port
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	fmt.Printf("Starting PlanLoop API server on port %d...\n", port)
	return api.NewServer(port, controller).Start()
}
