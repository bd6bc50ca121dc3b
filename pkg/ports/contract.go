package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbangroup/botflow/pkg/script"
)

// RunScriptStoreContract verifies a ScriptStore implementation against the
// interface contract. Adapters call it from their own tests.
func RunScriptStoreContract(t *testing.T, store ScriptStore) {
	ctx := context.Background()

	sample := &script.Script{
		ID:        "contract-script",
		Name:      "Contract",
		FirstStep: "STEP_1",
		Steps: script.Steps{
			&script.PromptStep{ID: "STEP_1", Text: "?", SaveTo: "answer", NextStep: "DONE_1"},
		},
		DoneActions: map[string]script.DoneAction{
			"DONE_1": {Text: "thanks", Action: script.ActionSaveMessage},
		},
		Active: true,
	}

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, sample))

		got, err := store.Get(ctx, sample.ID)
		require.NoError(t, err)
		assert.Equal(t, sample.ID, got.ID)
		assert.Equal(t, sample.FirstStep, got.FirstStep)
		require.Len(t, got.Steps, 1)
		assert.Equal(t, "STEP_1", got.Steps[0].StepID())
		assert.NotEmpty(t, got.UpdatedAt, "Put should stamp updated_at")
		assert.NotEmpty(t, got.CreatedAt, "Put should stamp created_at")
	})

	t.Run("Put preserves created_at", func(t *testing.T) {
		first, err := store.Get(ctx, sample.ID)
		require.NoError(t, err)

		again := first.Clone()
		again.Name = "Contract v2"
		require.NoError(t, store.Put(ctx, again))

		got, err := store.Get(ctx, sample.ID)
		require.NoError(t, err)
		assert.Equal(t, first.CreatedAt, got.CreatedAt)
		assert.Equal(t, "Contract v2", got.Name)
	})

	t.Run("Get unknown", func(t *testing.T) {
		_, err := store.Get(ctx, "no-such-script")
		assert.ErrorIs(t, err, script.ErrScriptNotFound)
	})

	t.Run("List", func(t *testing.T) {
		all, err := store.List(ctx)
		require.NoError(t, err)

		var ids []string
		for _, s := range all {
			ids = append(ids, s.ID)
		}
		assert.Contains(t, ids, sample.ID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sample.ID))
		_, err := store.Get(ctx, sample.ID)
		assert.ErrorIs(t, err, script.ErrScriptNotFound)
	})
}

// RunSessionStoreContract verifies a SessionStore implementation.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	phone := "9725550001"

	t.Run("Save and Load", func(t *testing.T) {
		sess := script.NewSession(phone, "sess-1", "contract-script", "STEP_1")
		sess.Fields["device_number"] = "D-42"
		sess.Log = append(sess.Log, script.Event{Type: script.EventSessionStart})

		require.NoError(t, store.Save(ctx, sess))

		got, err := store.Load(ctx, phone)
		require.NoError(t, err)
		assert.Equal(t, sess.SessionID, got.SessionID)
		assert.Equal(t, "STEP_1", got.Step)
		assert.Equal(t, "D-42", got.Fields["device_number"])
		require.Len(t, got.Log, 1)
		assert.Equal(t, script.EventSessionStart, got.Log[0].Type)
	})

	t.Run("Load unknown", func(t *testing.T) {
		_, err := store.Load(ctx, "0000000000")
		assert.ErrorIs(t, err, script.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		phones, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, phones, phone)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, phone))
		_, err := store.Load(ctx, phone)
		assert.ErrorIs(t, err, script.ErrSessionNotFound)
	})
}
