package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/swim-eval-api/pkg/middleware/requestid"
)

func TestForContextAttachesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := requestid.WithValue(context.Background(), "req-42")
	ForContext(base, ctx).Info("evaluation created")
	ForContext(base, context.Background()).Info("no request")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	_, tagged := entries[1].ContextMap()["request_id"]
	assert.False(t, tagged)
}

func TestForContextNilLogger(t *testing.T) {
	assert.NotNil(t, ForContext(nil, context.Background()))
}
