package suggest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSuggesterTests checks behaviour every Suggester must share. newFn
// returns an empty suggester.
func runSuggesterTests(t *testing.T, newFn func(t *testing.T) Suggester) {
	ctx := context.Background()

	t.Run("matches folded prefix", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "42", "Obsèques"))

		for _, prefix := range []string{"obs", "OBS", "Obsè", "obse", "obsèques"} {
			got, err := s.Suggest(ctx, prefix, 5)
			require.NoError(t, err)
			assert.Equal(t, []string{"Obsèques"}, got, prefix)
		}
	})

	t.Run("titles only", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "1", "Organiser des obsèques"))

		got, err := s.Suggest(ctx, "obs", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("orders by folded title then title", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "1", "crémation animale"))
		require.NoError(t, s.Add(ctx, "2", "Crémation"))
		require.NoError(t, s.Add(ctx, "3", "Cérémonie"))
		require.NoError(t, s.Add(ctx, "4", "Cremation"))
		require.NoError(t, s.Add(ctx, "5", "Dons"))

		got, err := s.Suggest(ctx, "c", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Cérémonie", "Cremation", "Crémation", "crémation animale"}, got)
	})

	t.Run("skips duplicate titles", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "1", "Contact"))
		require.NoError(t, s.Add(ctx, "2", "Contact"))

		got, err := s.Suggest(ctx, "con", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"Contact"}, got)

		require.NoError(t, s.Remove(ctx, "1"))
		got, err = s.Suggest(ctx, "con", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"Contact"}, got)

		require.NoError(t, s.Remove(ctx, "2"))
		got, err = s.Suggest(ctx, "con", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("caps at size", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "1", "Avis"))
		require.NoError(t, s.Add(ctx, "2", "Avis de décès"))
		require.NoError(t, s.Add(ctx, "3", "Avocat"))

		got, err := s.Suggest(ctx, "av", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"Avis", "Avis de décès"}, got)
	})

	t.Run("re-adding an id replaces its title", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "1", "Ancien titre"))
		require.NoError(t, s.Add(ctx, "1", "Nouveau titre"))

		got, err := s.Suggest(ctx, "ancien", 5)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.Suggest(ctx, "nouv", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"Nouveau titre"}, got)
	})

	t.Run("remove unknown id is a no-op", func(t *testing.T) {
		s := newFn(t)
		assert.NoError(t, s.Remove(ctx, "missing"))
	})

	t.Run("empty prefix returns nothing", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "1", "Accueil"))

		got, err := s.Suggest(ctx, "", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("rebuild replaces content", func(t *testing.T) {
		s := newFn(t)
		require.NoError(t, s.Add(ctx, "1", "Fleurs"))

		require.NoError(t, s.Rebuild(ctx, []Entry{
			{ID: "2", Title: "Faire-part"},
			{ID: "3", Title: "Fleurs funéraires"},
		}))

		got, err := s.Suggest(ctx, "f", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"Faire-part", "Fleurs funéraires"}, got)

		require.NoError(t, s.Remove(ctx, "3"))
		got, err = s.Suggest(ctx, "fl", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
