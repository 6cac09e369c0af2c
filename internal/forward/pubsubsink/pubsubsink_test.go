// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pubsubsink

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

func fakeServerOptions(srv *pstest.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		option.WithTelemetryDisabled(),
	}
}

func mustCreateTopic(t *testing.T, srv *pstest.Server, name string) {
	t.Helper()

	client, err := pubsub.NewClient(t.Context(), "test-project", fakeServerOptions(srv)...)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.TopicAdminClient.CreateTopic(t.Context(), &pubsubpb.Topic{Name: name})
	require.NoError(t, err)
}

func TestPublish(t *testing.T) {
	t.Parallel()

	srv := pstest.NewServer()
	defer srv.Close()

	config := Config{ProjectID: "test-project", TopicID: "actor-logs"}
	mustCreateTopic(t, srv, fmt.Sprintf("projects/%s/topics/%s", config.ProjectID, config.TopicID))

	sink, err := New(t.Context(), config, fakeServerOptions(srv)...)
	require.NoError(t, err)

	records := []*runtime.Record{
		{ID: 4, Level: level.Audit, Message: "Login", KV: kv.Fields(kv.F("user", "alice"))},
		{ID: 4, Level: level.Warn, Target: "session", Message: "expiring", KV: kv.Empty, Time: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, record := range records {
		require.NoError(t, sink.Forward(t.Context(), record))
	}
	require.NoError(t, sink.Flush(t.Context()))

	messages := srv.Messages()
	require.Len(t, messages, 2)

	byLevel := make(map[string]*pstest.Message, len(messages))
	for _, message := range messages {
		byLevel[message.Attributes[levelAttribute]] = message
	}

	audit := byLevel["AUDIT"]
	require.NotNil(t, audit)
	assert.Equal(t, map[string]string{levelAttribute: "AUDIT", logIDAttribute: "4"}, audit.Attributes)
	assert.JSONEq(t, `{"level":"AUDIT","id":4,"msg":"Login","kv":{"user":"alice"}}`, string(audit.Data))

	warn := byLevel["WARN"]
	require.NotNil(t, warn)
	assert.Equal(t, "session", warn.Attributes[targetAttribute])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(warn.Data, &decoded))
	assert.Equal(t, "2024-06-01T12:00:00Z", decoded["time"])

	require.NoError(t, sink.Close(t.Context()))
}

func TestPublishToMissingTopic(t *testing.T) {
	t.Parallel()

	srv := pstest.NewServer()
	defer srv.Close()

	sink, err := New(t.Context(), Config{ProjectID: "test-project", TopicID: "missing"}, fakeServerOptions(srv)...)
	require.NoError(t, err)

	require.NoError(t, sink.Forward(t.Context(), &runtime.Record{Level: level.Info, Message: "lost", KV: kv.Empty}))
	err = sink.Flush(t.Context())
	require.ErrorIs(t, err, ErrPubSubSink)

	assert.NoError(t, sink.Close(t.Context()))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PUBSUB_PROJECT", "test-project")
	t.Setenv("GOOGLE_CLOUD_PUBSUB_TOPIC", "actor-logs")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{ProjectID: "test-project", TopicID: "actor-logs"}, cfg)
}

func TestNewMissingConfig(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		config   Config
		expected string
	}{
		"all missing": {
			expected: "GOOGLE_CLOUD_PUBSUB_PROJECT, GOOGLE_CLOUD_PUBSUB_TOPIC",
		},
		"missing topic": {
			config:   Config{ProjectID: "test-project"},
			expected: "GOOGLE_CLOUD_PUBSUB_TOPIC",
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sink, err := New(t.Context(), test.config)
			require.Nil(t, sink)
			require.ErrorIs(t, err, ErrMissingEnvVariable)
			require.ErrorIs(t, err, ErrPubSubSink)
			assert.Contains(t, err.Error(), test.expected)
		})
	}
}
