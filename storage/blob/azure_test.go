// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"os"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAzureBlob(t *testing.T) {
	connectionString := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	if connectionString == "" {
		t.Skip("AZURE_STORAGE_CONNECTION_STRING is not set, skipping Azure Blob tests")
	}
	store, err := NewAzureBlob(config.AzureBlobConfig{ConnectionString: connectionString}, "gorse-movies-test", "dataset")
	require.NoError(t, err)
	_, err = store.client.CreateContainer(context.Background(), store.container, nil)
	if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		require.NoError(t, err)
	}
	testStore(t, store)
}

func TestAzureBlobMissingCredentials(t *testing.T) {
	_, err := NewAzureBlob(config.AzureBlobConfig{}, "gorse-movies-test", "")
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.ErrorContains(t, err, "account_name")
}
