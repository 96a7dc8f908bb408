package main

import (
	"fmt"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/plan"
	"github.com/kestrel-qa/testpilot/runner"
	"github.com/kestrel-qa/testpilot/script"
	"github.com/kestrel-qa/testpilot/storage"
	"github.com/kestrel-qa/testpilot/workflow"
)

// newLLMClient builds the model client for the configured provider.
func newLLMClient(cfg *Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "bedrock":
		return llm.NewBedrockClient(cfg.LLM.BedrockRegion, cfg.LLM.BedrockModel, cfg.LLM.MaxTokens)
	case "openai":
		return llm.NewOpenAIClient(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.LLM.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// newBlobStorage builds blob storage from configuration.
func newBlobStorage(cfg *Config) (storage.BlobStorage, error) {
	return storage.NewBlobStorage(cfg.Storage.Type, map[string]interface{}{
		"base_dir":       cfg.Storage.BaseDir,
		"bucket":         cfg.Storage.S3Bucket,
		"region":         cfg.Storage.S3Region,
		"presign_expiry": cfg.Storage.S3PresignExpiry,
	})
}

// newOrchestrator wires the planner, generator, validator and runner into a
// workflow orchestrator.
func newOrchestrator(cfg *Config, store storage.BlobStorage, log logger.Logger) (*workflow.Orchestrator, error) {
	client, err := newLLMClient(cfg)
	if err != nil {
		return nil, err
	}

	framework := script.Framework(cfg.Workflow.Framework)
	if !framework.IsValid() {
		return nil, fmt.Errorf("unsupported framework: %s", cfg.Workflow.Framework)
	}

	planner := plan.NewPlanner(client, log)
	generator := script.NewGenerator(client, framework, log)
	validator := script.NewValidator(client, log)
	testRunner := runner.NewPytestRunner(cfg.Workflow.PytestPath, cfg.Workflow.ExecTimeout, log)

	return workflow.NewOrchestrator(
		planner,
		generator,
		validator,
		testRunner,
		store,
		log,
		workflow.Config{
			MaxAttempts:  cfg.Workflow.MaxAttempts,
			StageTimeout: cfg.Workflow.StageTimeout,
			WorkRoot:     cfg.Workflow.WorkRoot,
		},
	), nil
}
