// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuresink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/caarlos0/env/v11"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
	// ErrAzureSink is the sentinel error for all Azure sink errors.
	ErrAzureSink = errors.New("azure sink")
)

// Config holds all the configuration needed to connect to Azure.
type Config struct {
	EventHubConnectionString string `env:"AZURE_EVENT_HUB_CONNECTION_STRING"`
	EventHubNamespace        string `env:"AZURE_EVENT_HUB_NAMESPACE"`
	EventHubName             string `env:"AZURE_EVENT_HUB_NAME"`

	BlobConnectionString string `env:"AZURE_STORAGE_BLOB_CONNECTION_STRING"`
	BlobStorageAccount   string `env:"AZURE_STORAGE_BLOB_ACCOUNT_NAME"`
	BlobContainerName    string `env:"AZURE_STORAGE_BLOB_CONTAINER_NAME"`
	BlobPrefix           string `env:"AZURE_STORAGE_BLOB_PREFIX" envDefault:"actorlog"`
}

// ConfigFromEnv reads the Azure configuration from the environment.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, handleError(err)
	}
	return cfg, nil
}

// validateForEventHub checks if the configuration is valid for the Event Hubs sink.
func (c Config) validateForEventHub() error {
	switch {
	case len(c.EventHubConnectionString) == 0 && len(c.EventHubNamespace) == 0:
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "one of AZURE_EVENT_HUB_CONNECTION_STRING or AZURE_EVENT_HUB_NAMESPACE must be present")
	case len(c.EventHubNamespace) > 0 && len(c.EventHubName) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_EVENT_HUB_NAME")
	}

	return nil
}

// validateForBlob checks if the configuration is valid for the blob sink.
func (c Config) validateForBlob() error {
	switch {
	case len(c.BlobConnectionString) == 0 && len(c.BlobStorageAccount) == 0:
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "one of AZURE_STORAGE_BLOB_CONNECTION_STRING or AZURE_STORAGE_BLOB_ACCOUNT_NAME must be present")
	case len(c.BlobContainerName) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_STORAGE_BLOB_CONTAINER_NAME")
	}

	return nil
}

func (c Config) blobServiceURL() string {
	if strings.Contains(c.BlobStorageAccount, ".blob.core.windows.net") {
		return c.BlobStorageAccount
	}

	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.BlobStorageAccount)
}

func (c Config) eventHubFullyQualifiedNamespace() string {
	if strings.Contains(c.EventHubNamespace, ".servicebus.windows.net") {
		return c.EventHubNamespace
	}

	return c.EventHubNamespace + ".servicebus.windows.net"
}

func (c Config) newProducerClient() (*azeventhubs.ProducerClient, error) {
	if c.EventHubConnectionString != "" {
		return azeventhubs.NewProducerClientFromConnectionString(c.EventHubConnectionString, c.EventHubName, nil)
	}

	credentials, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azeventhubs.NewProducerClient(c.eventHubFullyQualifiedNamespace(), c.EventHubName, credentials, nil)
}

func (c Config) newBlobClient() (*azblob.Client, error) {
	if c.BlobConnectionString != "" {
		return azblob.NewClientFromConnectionString(c.BlobConnectionString, nil)
	}

	credentials, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azblob.NewClient(c.blobServiceURL(), credentials, nil)
}

// handleError always wraps the given error with ErrAzureSink.
// Azure response errors are reduced to their status and error code.
func handleError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrAzureSink) {
		return err
	}

	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) {
		err = fmt.Errorf("%d %s", responseErr.StatusCode, responseErr.ErrorCode)
	}

	return fmt.Errorf("%w: %w", ErrAzureSink, err)
}
