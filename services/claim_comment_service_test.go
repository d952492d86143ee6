package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"etd-catalog/etderr"
	"etd-catalog/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commentFixture struct {
	*fixture
	comments *ClaimCommentService
	entry    *models.EtdEntry
}

func newCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	f := newFixture(t)
	owner := f.user(t, "owner")
	entry, err := f.entries.Create(context.Background(), validMeta(), pdfUpload("doc.pdf"), owner.ID)
	require.NoError(t, err)
	return &commentFixture{
		fixture:  f,
		comments: NewClaimCommentService(f.db, f.repo, f.entries.Logger),
		entry:    entry,
	}
}

func (f *commentFixture) comment(t *testing.T, authorID uint) *models.ClaimComment {
	t.Helper()
	c, err := f.comments.AddComment(context.Background(), f.entry.ID, &models.ClaimComment{
		Claim:        "The speedup holds for n > 1000",
		Reproducible: models.ReproduciblePartially,
		Results:      "Measured 1.8x instead of 2x",
	}, authorID)
	require.NoError(t, err)
	return c
}

// snapshot hält Zähler und Mitgliedschaft fest, um unveränderten Zustand zu prüfen.
type snapshot struct {
	likes    int64
	liked    int64
	disliked int64
}

func (f *commentFixture) snapshot(t *testing.T, userID, commentID uint) snapshot {
	t.Helper()
	var s snapshot
	c, err := f.comments.GetComment(context.Background(), commentID)
	require.NoError(t, err)
	s.likes = c.Likes
	require.NoError(t, f.db.Model(&models.LikedComment{}).Where("user_id = ? AND claim_comment_id = ?", userID, commentID).Count(&s.liked).Error)
	require.NoError(t, f.db.Model(&models.DislikedComment{}).Where("user_id = ? AND claim_comment_id = ?", userID, commentID).Count(&s.disliked).Error)
	return s
}

func TestTransitionTable(t *testing.T) {
	none, liked, disliked := models.LikeStatusNone, models.LikeStatusLiked, models.LikeStatusDisliked
	tests := []struct {
		from   models.LikeStatus
		action ReactionAction
		to     models.LikeStatus
		delta  int64
		err    error
	}{
		{none, ActionLike, liked, 1, nil},
		{disliked, ActionLike, liked, 2, nil},
		{liked, ActionLike, liked, 0, etderr.ErrAlreadyLiked},
		{none, ActionDislike, disliked, -1, nil},
		{liked, ActionDislike, disliked, -2, nil},
		{disliked, ActionDislike, disliked, 0, etderr.ErrAlreadyDisliked},
		{liked, ActionUnlike, none, -1, nil},
		{none, ActionUnlike, none, 0, etderr.ErrNotLiked},
		{disliked, ActionUnlike, disliked, 0, etderr.ErrNotLiked},
		{disliked, ActionUndislike, none, 1, nil},
		{none, ActionUndislike, none, 0, etderr.ErrNotDisliked},
		{liked, ActionUndislike, liked, 0, etderr.ErrNotDisliked},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			to, delta, err := transition(tt.from, tt.action)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.True(t, etderr.IsReactionConflict(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
			assert.Equal(t, tt.delta, delta)
		})
	}

	_, _, err := transition(none, ReactionAction("boost"))
	assert.ErrorIs(t, err, etderr.ErrValidationFailed)
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	author := f.user(t, "author")

	c, err := f.comments.AddComment(ctx, f.entry.ID, &models.ClaimComment{Claim: "claim", Likes: 99, Reproducible: models.ReproducibleYes}, author.ID)
	require.NoError(t, err)
	assert.Zero(t, c.Likes)
	assert.Equal(t, f.entry.ID, c.EtdEntryID)
	assert.Equal(t, author.ID, c.UserID)

	_, err = f.comments.AddComment(ctx, f.entry.ID+100, &models.ClaimComment{Claim: "claim"}, author.ID)
	assert.ErrorIs(t, err, etderr.ErrRecordNotFound)
	_, err = f.comments.AddComment(ctx, f.entry.ID, &models.ClaimComment{Claim: "  "}, author.ID)
	assert.ErrorIs(t, err, etderr.ErrValidationFailed)
	_, err = f.comments.AddComment(ctx, f.entry.ID, &models.ClaimComment{Claim: "x", Reproducible: 7}, author.ID)
	assert.ErrorIs(t, err, etderr.ErrValidationFailed)

	second := f.comment(t, author.ID)
	list, err := f.comments.EntryComments(ctx, f.entry.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	got, err := f.comments.GetComments(ctx, []uint{second.ID, 12345, c.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)

	_, err = f.comments.GetComment(ctx, 12345)
	assert.ErrorIs(t, err, etderr.ErrCommentNotFound)
	_, err = f.comments.EntryComments(ctx, f.entry.ID+100)
	assert.ErrorIs(t, err, etderr.ErrRecordNotFound)
}

func TestLikeThenUnlikeRestoresState(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	u := f.user(t, "reader")
	c := f.comment(t, u.ID)
	before := f.snapshot(t, u.ID, c.ID)

	after, err := f.comments.Like(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, before.likes+1, after.Likes)

	_, err = f.comments.Unlike(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, before, f.snapshot(t, u.ID, c.ID))

	status, err := f.comments.ReactionStatus(ctx, u.ID, []models.ClaimComment{*c})
	require.NoError(t, err)
	assert.Equal(t, []models.LikeStatus{models.LikeStatusNone}, status)
}

func TestLikeThenDislike(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	u := f.user(t, "reader")
	c := f.comment(t, u.ID)

	liked, err := f.comments.Like(ctx, u.ID, c.ID)
	require.NoError(t, err)
	disliked, err := f.comments.Dislike(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, liked.Likes-2, disliked.Likes)
	assert.Equal(t, snapshot{likes: -1, liked: 0, disliked: 1}, f.snapshot(t, u.ID, c.ID))

	back, err := f.comments.Like(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), back.Likes)

	_, err = f.comments.Unlike(ctx, u.ID, c.ID)
	require.NoError(t, err)
	_, err = f.comments.Dislike(ctx, u.ID, c.ID)
	require.NoError(t, err)
	undone, err := f.comments.Undislike(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Zero(t, undone.Likes)
}

func TestReactionConflictsLeaveStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	u := f.user(t, "reader")
	c := f.comment(t, u.ID)

	_, err := f.comments.Like(ctx, u.ID, c.ID)
	require.NoError(t, err)
	before := f.snapshot(t, u.ID, c.ID)

	_, err = f.comments.Like(ctx, u.ID, c.ID)
	assert.ErrorIs(t, err, etderr.ErrAlreadyLiked)
	_, err = f.comments.Undislike(ctx, u.ID, c.ID)
	assert.ErrorIs(t, err, etderr.ErrNotDisliked)
	assert.Equal(t, before, f.snapshot(t, u.ID, c.ID))

	_, err = f.comments.Dislike(ctx, u.ID, c.ID)
	require.NoError(t, err)
	before = f.snapshot(t, u.ID, c.ID)
	_, err = f.comments.Dislike(ctx, u.ID, c.ID)
	assert.ErrorIs(t, err, etderr.ErrAlreadyDisliked)
	_, err = f.comments.Unlike(ctx, u.ID, c.ID)
	assert.ErrorIs(t, err, etderr.ErrNotLiked)
	assert.Equal(t, before, f.snapshot(t, u.ID, c.ID))
}

func TestReactionUnknownCommentOrUser(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	u := f.user(t, "reader")
	c := f.comment(t, u.ID)

	for _, action := range []ReactionAction{ActionLike, ActionDislike, ActionUnlike, ActionUndislike} {
		_, err := f.comments.React(ctx, u.ID, 9999, action)
		assert.ErrorIs(t, err, etderr.ErrCommentNotFound, string(action))
	}
	_, err := f.comments.Like(ctx, 9999, c.ID)
	assert.ErrorIs(t, err, etderr.ErrUserNotFound)
}

func TestCounterMatchesMembership(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	c := f.comment(t, f.user(t, "author").ID)

	actions := map[string][]ReactionAction{
		"u1": {ActionLike},
		"u2": {ActionDislike},
		"u3": {ActionLike, ActionDislike},
		"u4": {ActionDislike, ActionLike, ActionUnlike},
		"u5": {ActionLike, ActionUnlike, ActionLike},
	}
	for name, seq := range actions {
		u := f.user(t, name)
		for _, a := range seq {
			_, err := f.comments.React(ctx, u.ID, c.ID, a)
			require.NoError(t, err, "%s %s", name, a)
		}
	}

	var liked, disliked int64
	require.NoError(t, f.db.Model(&models.LikedComment{}).Where("claim_comment_id = ?", c.ID).Count(&liked).Error)
	require.NoError(t, f.db.Model(&models.DislikedComment{}).Where("claim_comment_id = ?", c.ID).Count(&disliked).Error)
	got, err := f.comments.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, liked-disliked, got.Likes)
	assert.Equal(t, int64(0), got.Likes)
}

func TestConcurrentDoubleLike(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	u := f.user(t, "clicker")
	c := f.comment(t, u.ID)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.comments.Like(ctx, u.ID, c.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, etderr.ErrAlreadyLiked), "unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, snapshot{likes: 1, liked: 1, disliked: 0}, f.snapshot(t, u.ID, c.ID))
}

func TestReactionStatusAndLikesFor(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	u := f.user(t, "reader")
	other := f.user(t, "other")
	a, b, c := f.comment(t, u.ID), f.comment(t, u.ID), f.comment(t, u.ID)

	_, err := f.comments.Like(ctx, u.ID, a.ID)
	require.NoError(t, err)
	_, err = f.comments.Dislike(ctx, u.ID, b.ID)
	require.NoError(t, err)
	_, err = f.comments.Like(ctx, other.ID, c.ID)
	require.NoError(t, err)

	comments, err := f.comments.GetComments(ctx, []uint{a.ID, b.ID, c.ID})
	require.NoError(t, err)

	status, err := f.comments.ReactionStatus(ctx, u.ID, comments)
	require.NoError(t, err)
	assert.Equal(t, []models.LikeStatus{models.LikeStatusLiked, models.LikeStatusDisliked, models.LikeStatusNone}, status)
	assert.Equal(t, []int64{1, -1, 1}, LikesFor(comments))

	empty, err := f.comments.ReactionStatus(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEntryRemovalCascadesComments(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	u := f.user(t, "reader")
	c := f.comment(t, u.ID)
	_, err := f.comments.Like(ctx, u.ID, c.ID)
	require.NoError(t, err)

	require.NoError(t, f.entries.Delete(ctx, f.entry.ID))
	_, err = f.comments.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, etderr.ErrCommentNotFound)
	assert.Zero(t, f.countRows(t, &models.LikedComment{}))
}

func TestAddCommentNeedsReadyEntry(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	author := f.user(t, "author")

	// Eintrag, dessen Anlage vor dem Dokument-Schritt stehen geblieben ist
	pending, err := f.repo.Insert(ctx, &models.EtdEntry{UserID: &author.ID})
	require.NoError(t, err)

	_, err = f.comments.AddComment(ctx, pending, &models.ClaimComment{Claim: "claim", Reproducible: models.ReproducibleNo}, author.ID)
	assert.ErrorIs(t, err, etderr.ErrRecordNotFound)
	assert.Zero(t, f.countRows(t, &models.ClaimComment{}))
}

func TestReactionsDuringUserDeletionKeepCounterConsistent(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(t)
	c := f.comment(t, f.user(t, "author").ID)
	leaving := f.user(t, "leaving")
	staying := f.user(t, "staying")

	_, err := f.comments.Like(ctx, staying.ID, c.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actions := []ReactionAction{ActionLike, ActionUnlike, ActionDislike}
			_, _ = f.comments.React(ctx, leaving.ID, c.ID, actions[i%len(actions)])
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.users.Delete(ctx, leaving.ID))
	}()
	wg.Wait()

	got, err := f.comments.GetComment(ctx, c.ID)
	require.NoError(t, err)
	liked := f.countRows(t, &models.LikedComment{})
	disliked := f.countRows(t, &models.DislikedComment{})
	assert.Equal(t, liked-disliked, got.Likes)
	assert.Equal(t, int64(1), got.Likes)

	_, err = f.comments.Like(ctx, leaving.ID, c.ID)
	assert.ErrorIs(t, err, etderr.ErrUserNotFound)
}
