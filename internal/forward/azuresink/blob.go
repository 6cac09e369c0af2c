// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuresink

import (
	"bytes"
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/google/uuid"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

const (
	blobLoggerName = "actorlog:sink:blob"

	blobTimeLayout = "2006/01/02/150405"
)

// uploader is the subset of azblob.Client used by BlobSink.
type uploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

var (
	_ forward.Sink    = &BlobSink{}
	_ forward.Flusher = &BlobSink{}
	_ forward.Closer  = &BlobSink{}
)

// BlobSink archives records as JSON lines, one blob per flush named
// <prefix>/<yyyy/mm/dd/hhmmss>-<uuid>.jsonl.
type BlobSink struct {
	client    uploader
	container string
	prefix    string
	now       func() time.Time

	lock   sync.Mutex
	buffer bytes.Buffer
	count  int
}

// NewBlobSink connects to the storage account described by cfg.
func NewBlobSink(cfg Config) (*BlobSink, error) {
	if err := cfg.validateForBlob(); err != nil {
		return nil, handleError(err)
	}

	client, err := cfg.newBlobClient()
	if err != nil {
		return nil, handleError(err)
	}

	return newBlobSink(client, cfg.BlobContainerName, cfg.BlobPrefix), nil
}

func newBlobSink(client uploader, container, prefix string) *BlobSink {
	return &BlobSink{
		client:    client,
		container: container,
		prefix:    prefix,
		now:       time.Now,
	}
}

func (s *BlobSink) Forward(_ context.Context, record *runtime.Record) error {
	line := forward.EncodeJSON(record)

	s.lock.Lock()
	defer s.lock.Unlock()
	s.buffer.Write(line)
	s.buffer.WriteByte('\n')
	s.count++
	return nil
}

// Flush uploads the buffered lines as a new blob.
func (s *BlobSink) Flush(ctx context.Context) error {
	s.lock.Lock()
	if s.count == 0 {
		s.lock.Unlock()
		return nil
	}
	content := bytes.Clone(s.buffer.Bytes())
	count := s.count
	s.buffer.Reset()
	s.count = 0
	s.lock.Unlock()

	name := s.blobName()
	_, err := s.client.UploadBuffer(ctx, s.container, name, content, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/x-ndjson")},
		Metadata:    map[string]*string{"records": to.Ptr(strconv.Itoa(count))},
	})
	if err != nil {
		return handleError(err)
	}

	logger.Named(ctx, blobLoggerName).Trace("uploaded blob", "container", s.container, "blob", name, "count", count)
	return nil
}

// Close uploads what is still buffered.
func (s *BlobSink) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func (s *BlobSink) blobName() string {
	return path.Join(s.prefix, s.now().UTC().Format(blobTimeLayout)+"-"+uuid.NewString()+".jsonl")
}
