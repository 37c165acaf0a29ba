package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/target/bgsms/internal/bootstrap"
	"github.com/target/bgsms/internal/domain/model"
)

func TestRunRejectsBadInvocation(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx := context.Background()

	err := run(ctx, logger, "not-a-worker", "e30=")
	require.ErrorContains(t, err, "parse worker id")

	err = run(ctx, logger, "SmsBackgroundWorker-2024-01-01-0123456789abcdef", "%%%")
	require.ErrorContains(t, err, "decode config blob")
}

func TestNewRunnerRejectsUnknownRole(t *testing.T) {
	_, err := newRunner(&bootstrap.Infra{}, model.WorkerID{Role: "janitor"})
	require.ErrorContains(t, err, "unsupported worker role")
}
