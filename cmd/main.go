package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"chat-widget/handler"
	appconfig "chat-widget/internal/config"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/internal/integrations/proxy"
	"chat-widget/internal/observability"
	"chat-widget/internal/repository"
	"chat-widget/internal/usecase"
)

// newRootCmd builds the command tree. Run without a subcommand inside the
// Lambda runtime (a provided.al2 bootstrap), it starts the Lambda handler.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chat-widget",
		Short: "Browser chat widget backed by a completion proxy",
		Long: `chat-widget serves a small chat page. Every message is sent, together with a
fixed system prompt and the page's transcript, to a completion proxy in a
single JSON POST, and the reply is rendered back into the page.

Configuration is read from the environment (and .env when present):
  PROXY_URL, PROXY_TIMEOUT, PARAM_PREFIX, STATE_TABLE, SESSION_TTL,
  MAX_INPUT_LENGTH, LISTEN_ADDR, LOG_LEVEL`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inLambdaRuntime() {
				return runLambda(cmd)
			}
			return cmd.Help()
		},
	}
	root.AddCommand(newServeCmd(), newLambdaCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		observability.Logger().Error("command failed", "err", err)
		os.Exit(1)
	}
}

// buildHandler wires the proxy client, stores and use case from cfg. AWS
// clients are only created when SSM or DynamoDB are configured.
func buildHandler(ctx context.Context, cfg appconfig.Config) (*handler.Handler, error) {
	log := observability.Logger()

	proxyClient, err := proxy.NewClient(cfg.ProxyURL, proxy.WithTimeout(cfg.ProxyTimeout))
	if err != nil {
		return nil, fmt.Errorf("create proxy client: %w", err)
	}

	var (
		params usecase.ParamGetter
		store  usecase.TranscriptStore
	)

	if cfg.UsesAWS() {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		if cfg.ParamPrefix != "" {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, fmt.Errorf("create SSM client: %w", err)
			}
			params = ssmClient
			log.Info("prompt overrides enabled", "param_prefix", cfg.ParamPrefix)
		}
		if cfg.StateTable != "" {
			dynamoStore, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, cfg.SessionTTL)
			if err != nil {
				return nil, fmt.Errorf("create transcript store: %w", err)
			}
			store = dynamoStore
			log.Info("using DynamoDB transcript store", "table", cfg.StateTable)
		}
	}
	if store == nil {
		store = repository.NewMemoryStore(cfg.SessionTTL)
		log.Info("using in-memory transcript store")
	}

	chatService, err := usecase.NewChatService(params, proxyClient, store, cfg.ParamPrefix, cfg.MaxInputLength)
	if err != nil {
		return nil, fmt.Errorf("create chat service: %w", err)
	}

	h, err := handler.NewHandler(chatService)
	if err != nil {
		return nil, fmt.Errorf("create handler: %w", err)
	}
	return h, nil
}

func loadConfig() (appconfig.Config, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return appconfig.Config{}, err
	}
	observability.Init(os.Stdout, cfg.LogLevel)
	return cfg, nil
}
