package botflow_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbangroup/botflow"
	"github.com/urbangroup/botflow/pkg/script"
)

func demoScript() *script.Script {
	return &script.Script{
		ID:              "M10010",
		GreetingUnknown: "Hello!",
		FirstStep:       "ASK",
		Active:          true,
		Steps: script.Steps{
			&script.PromptStep{ID: "ASK", Text: "Say something", SaveTo: "said", NextStep: "DONE"},
		},
		DoneActions: map[string]script.DoneAction{
			"DONE": {Text: "Bye", Action: script.ActionSaveMessage},
		},
	}
}

func TestApp_InMemory(t *testing.T) {
	app, err := botflow.New()
	require.NoError(t, err)
	defer app.Close()
	ctx := context.Background()

	require.NoError(t, app.Scripts.Put(ctx, demoScript()))

	sess, reply, err := app.Engine.StartSession(ctx, "551", "M10010")
	require.NoError(t, err)
	require.NoError(t, app.Sessions.Start(ctx, sess))
	assert.Contains(t, reply.Text, "Hello!")

	got, err := app.Sessions.Load(ctx, "551")
	require.NoError(t, err)
	assert.Equal(t, "ASK", got.Step)
}

func TestApp_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	app, err := botflow.New(botflow.WithRedis(mr.Addr(), "", 0))
	require.NoError(t, err)
	defer app.Close()
	ctx := context.Background()

	require.NoError(t, app.Scripts.Put(ctx, demoScript()))

	sess, _, err := app.Engine.StartSession(ctx, "551", "M10010")
	require.NoError(t, err)
	require.NoError(t, app.Sessions.Start(ctx, sess))

	_, err = app.Sessions.Transition(ctx, "551", func(ctx context.Context, cur *script.Session) (*script.Session, error) {
		next, _, err := app.Engine.HandleMessage(ctx, cur, "hello there")
		return next, err
	})
	require.NoError(t, err)

	got, err := app.Sessions.Load(ctx, "551")
	require.NoError(t, err)
	assert.Equal(t, script.StatusDone, got.Status)
	assert.Equal(t, "hello there", got.Fields["said"])
}
