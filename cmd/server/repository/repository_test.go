package repository

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/duette-app/duette/cmd/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMemoryCatalogVideos(t *testing.T) {
	cat := NewMemoryCatalog()
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cat.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	videos := cat.Videos()
	ctx := context.Background()

	older := &models.Video{ID: uuid.New(), Title: "Cello Suite", Composer: strPtr("Bach"), Performer: "Yo"}
	newer := &models.Video{ID: uuid.New(), Title: "Nocturne", Composer: strPtr("Chopin"), Performer: "Maria"}
	require.NoError(t, videos.Create(ctx, older))
	require.NoError(t, videos.Create(ctx, newer))

	all, err := videos.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)

	found, err := videos.List(ctx, "BACH")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, older.ID, found[0].ID)

	found, err = videos.List(ctx, "mari")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, newer.ID, found[0].ID)

	_, err = videos.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, videos.Update(ctx, &models.Video{ID: uuid.New()}), ErrNotFound)
}

func TestMemoryCatalogDeleteCascades(t *testing.T) {
	cat := NewMemoryCatalog()
	ctx := context.Background()

	v := &models.Video{ID: uuid.New(), Title: "t", Performer: "p"}
	require.NoError(t, cat.Videos().Create(ctx, v))

	d1 := &models.Duette{ID: uuid.New(), VideoID: v.ID}
	d2 := &models.Duette{ID: uuid.New(), VideoID: v.ID}
	require.NoError(t, cat.Duettes().Create(ctx, d1))
	require.NoError(t, cat.Duettes().Create(ctx, d2))
	assert.Equal(t, v.ID.String()+d1.ID.String()+".mov", d1.ObjectKey)

	ids, err := cat.Videos().Delete(ctx, v.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{d1.ID, d2.ID}, ids)

	left, err := cat.Duettes().ListByVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = cat.Videos().Delete(ctx, v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, cat.Duettes().Delete(ctx, v.ID, d1.ID), ErrNotFound)
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\d%`, likePattern(`c:\d`))
}

func TestVideoItemRoundTrip(t *testing.T) {
	v := &models.Video{
		ID:        uuid.New(),
		Title:     "Ave Maria",
		Key:       strPtr("B flat"),
		Performer: "Ann",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	av, err := attributevalue.MarshalMap(toVideoItem(v))
	require.NoError(t, err)
	assert.Contains(t, av, "music_key")
	assert.NotContains(t, av, "composer")

	var item videoItem
	require.NoError(t, attributevalue.UnmarshalMap(av, &item))
	got, err := item.toModel()
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestMatchesSearch(t *testing.T) {
	v := &models.Video{Title: "Clair de Lune", Composer: strPtr("Debussy"), Performer: "Lang", Notes: strPtr("slow")}

	assert.True(t, matchesSearch(v, ""))
	assert.True(t, matchesSearch(v, "lune"))
	assert.True(t, matchesSearch(v, "DEBU"))
	assert.True(t, matchesSearch(v, "lang"))
	assert.False(t, matchesSearch(v, "slow"))
}
