package service

import (
	"context"
	"testing"

	"library-service/internal/apperror"
	"library-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenreLifecycle(t *testing.T) {
	st := newMemStore()
	svc := NewGenreService(st)
	ctx := context.Background()

	genre, err := svc.CreateGenre(ctx, &GenreRequest{Name: " Poetry "})
	require.NoError(t, err)
	assert.Equal(t, "Poetry", genre.Name)

	_, err = svc.CreateGenre(ctx, &GenreRequest{Name: "Poetry"})
	assert.True(t, apperror.Is(err, apperror.Conflict))

	_, err = svc.CreateGenre(ctx, &GenreRequest{Name: ""})
	assert.True(t, apperror.Is(err, apperror.Validation))

	renamed, err := svc.UpdateGenre(ctx, genre.ID, &GenreRequest{Name: "Verse"})
	require.NoError(t, err)
	assert.Equal(t, "Verse", renamed.Name)

	got, err := svc.GetGenre(ctx, genre.ID)
	require.NoError(t, err)
	assert.Equal(t, "Verse", got.Name)

	require.NoError(t, svc.DeleteGenre(ctx, genre.ID))
	_, err = svc.GetGenre(ctx, genre.ID)
	assert.True(t, apperror.Is(err, apperror.NotFound))

	err = svc.DeleteGenre(ctx, genre.ID)
	assert.True(t, apperror.Is(err, apperror.NotFound))
}

func TestUpdateGenreDuplicateName(t *testing.T) {
	st := newMemStore()
	st.addGenre(genreFiction, "Fiction")
	st.addGenre(genreScience, "Science")
	svc := NewGenreService(st)

	_, err := svc.UpdateGenre(context.Background(), genreScience, &GenreRequest{Name: "Fiction"})

	assert.True(t, apperror.Is(err, apperror.Conflict))
}

func TestDeleteGenreInUse(t *testing.T) {
	st := newMemStore()
	st.addGenre(genreFiction, "Fiction")
	st.addBook(bookGo, "The Go Programming Language", "10.50", 5, genreFiction)
	svc := NewGenreService(st)

	err := svc.DeleteGenre(context.Background(), genreFiction)

	assert.True(t, apperror.Is(err, apperror.Conflict))
	assert.Nil(t, st.genres[genreFiction].DeletedAt)
}

func TestGenreMalformedID(t *testing.T) {
	svc := NewGenreService(newMemStore())

	_, err := svc.GetGenre(context.Background(), "fiction")
	assert.True(t, apperror.Is(err, apperror.Validation))
}

func TestListGenresAndSeed(t *testing.T) {
	st := newMemStore()
	st.addGenre(genreFiction, "Fiction")
	svc := NewGenreService(st)
	ctx := context.Background()

	require.NoError(t, svc.SeedDefaultGenres(ctx))

	genres, meta, err := svc.ListGenres(ctx, models.GenreQuery{Pagination: models.Pagination{Limit: 500}})
	require.NoError(t, err)
	assert.Len(t, genres, len(DefaultGenres))
	assert.Equal(t, models.MaxLimit, meta.Limit)

	_, _, err = svc.ListGenres(ctx, models.GenreQuery{OrderByName: "random"})
	assert.True(t, apperror.Is(err, apperror.Validation))
}
