package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	tel, err := Init(context.Background(), "run-engine", "")
	require.NoError(t, err)

	_, span := tel.Tracer.Start(context.Background(), "run")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	called := false
	h := tel.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.True(t, called)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), "", "")
	assert.Error(t, err)
}

func TestInitRejectsEndpointWithoutHost(t *testing.T) {
	_, err := Init(context.Background(), "run-engine", "http://")
	assert.ErrorContains(t, err, "invalid OTLP endpoint")
}

func TestInitWithEndpoint(t *testing.T) {
	tel, err := Init(context.Background(), "run-engine", "http://127.0.0.1:4318/v1/traces")
	require.NoError(t, err)

	_, span := tel.Tracer.Start(context.Background(), "run")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing listens on the collector port; shutdown must still return
	_ = tel.Shutdown(ctx)
}
