package orchestrator

import (
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ServiceManager manages the lifecycle of the ingest and API services
type ServiceManager struct {
	ingestCmd *exec.Cmd
	apiCmd    *exec.Cmd
}

// NewServiceManager creates a new service manager
func NewServiceManager() *ServiceManager {
	return &ServiceManager{}
}

// StartIngestService runs the ingest binary to completion. Ingest is a batch
// job: the API must not start against a half-loaded store.
func (sm *ServiceManager) StartIngestService(ctx context.Context, binExt string) error {
	log.Info().Msg("Starting ingest service...")

	sm.ingestCmd = exec.CommandContext(ctx, "./ingest"+binExt)
	sm.ingestCmd.Stdout = log.Logger
	sm.ingestCmd.Stderr = log.Logger

	if err := sm.ingestCmd.Start(); err != nil {
		return err
	}

	if err := sm.ingestCmd.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Ingest service completed successfully")
	return nil
}

// StartAPIService starts the API service
func (sm *ServiceManager) StartAPIService(ctx context.Context, binExt string) error {
	log.Info().Msg("Starting API service...")

	sm.apiCmd = exec.CommandContext(ctx, "./api"+binExt)
	sm.apiCmd.Stdout = log.Logger
	sm.apiCmd.Stderr = log.Logger

	if err := sm.apiCmd.Start(); err != nil {
		return err
	}

	return nil
}

// WaitForServices blocks until the API exits or the context is cancelled
func (sm *ServiceManager) WaitForServices(ctx context.Context) {
	log.Info().Msg("API service running, waiting for completion...")

	apiDone := make(chan error, 1)
	go func() {
		apiDone <- sm.apiCmd.Wait()
	}()

	select {
	case err := <-apiDone:
		if err != nil {
			log.Error().Err(err).Msg("API service exited with error")
		} else {
			log.Info().Msg("API service exited")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down services...")
		sm.shutdownServices()
	}
}

// shutdownServices gracefully shuts down the API service
func (sm *ServiceManager) shutdownServices() {
	if sm.apiCmd.Process != nil {
		sm.apiCmd.Process.Signal(syscall.SIGTERM)
	}

	// Wait for graceful shutdown
	time.Sleep(5 * time.Second)

	// Force kill if still running
	if sm.apiCmd.Process != nil {
		sm.apiCmd.Process.Kill()
	}
}
