package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"yourobc-billing/internal/app"
	"yourobc-billing/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	app.ApplicationService
	actor core.Actor
}

func (f *fakeService) ActAs(ctx context.Context, username string) (context.Context, error) {
	if username != "admin" {
		return nil, core.ErrNotFound
	}
	f.actor = core.Actor{ID: "u-admin", Username: username, Role: core.RoleAdmin}
	return core.WithActor(ctx, f.actor), nil
}

func (f *fakeService) PreviewInvoiceNumber(ctx context.Context) (*app.InvoiceNumberResult, error) {
	if _, ok := core.ActorFromContext(ctx); !ok {
		return nil, core.ErrNotAuthenticated
	}
	return &app.InvoiceNumberResult{InvoiceNumber: "25030026"}, nil
}

func run(t *testing.T, factory ServiceFactory, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(factory)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func offline(context.Context) (app.ApplicationService, func(), error) {
	return nil, nil, errors.New("database must not be opened")
}

func TestNumberValidateWorksOffline(t *testing.T) {
	out, err := run(t, offline, "number", "validate", "25030013")
	require.NoError(t, err)
	assert.Contains(t, out, "25030013 is valid")

	_, err = run(t, offline, "number", "validate", "25030014")
	assert.Error(t, err)
}

func TestNumberParse(t *testing.T) {
	out, err := run(t, offline, "number", "parse", "25120026")
	require.NoError(t, err)
	assert.Contains(t, out, `"month": 12`)
	assert.Contains(t, out, `"sequence": 26`)
}

func TestNumberPreviewActsAsUser(t *testing.T) {
	svc := &fakeService{}
	closed := false
	factory := func(context.Context) (app.ApplicationService, func(), error) {
		return svc, func() { closed = true }, nil
	}

	out, err := run(t, factory, "--as", "admin", "number", "preview")
	require.NoError(t, err)
	assert.Equal(t, "25030026\n", out)
	assert.Equal(t, "u-admin", svc.actor.ID)
	assert.True(t, closed)

	_, err = run(t, factory, "--as", "nobody", "number", "preview")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestNumberResetRejectsBadArgs(t *testing.T) {
	_, err := run(t, offline, "number", "reset", "2025", "march", "26")
	assert.Error(t, err)
}
