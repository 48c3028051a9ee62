package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"chat-widget/handler"
)

// startLambda hands the handler to the Lambda runtime loop. It only returns
// when the runtime fails.
var startLambda = func(h *handler.Handler) {
	lambda.Start(h.Handle)
}

func inLambdaRuntime() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
}

func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda behind API Gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLambda(cmd)
		},
	}
}

func runLambda(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := buildHandler(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	startLambda(h)
	return nil
}
