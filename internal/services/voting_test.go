package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"comnet/internal/models"
)

func assertResult(t *testing.T, step string, got *VoteResult, score, up, down, userVote int) {
	t.Helper()
	if got.Score != score || got.Upvotes != up || got.Downvotes != down || got.UserVote != userVote {
		t.Errorf("%s: expected score=%d up=%d down=%d user_vote=%d, got %+v", step, score, up, down, userVote, *got)
	}
}

// assertPostMatchesLedger checks the stored counters against the votes table.
func assertPostMatchesLedger(t *testing.T, f *voteFixture, postID uint) {
	t.Helper()
	var post models.Post
	if err := f.db.First(&post, postID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}

	var votes []models.Vote
	f.db.Where("post_id = ?", postID).Find(&votes)
	up, down, score := 0, 0, 0
	for _, v := range votes {
		switch v.Direction {
		case 1:
			up++
		case -1:
			down++
		default:
			t.Errorf("stored vote with direction %d", v.Direction)
		}
		score += v.Direction
	}
	if post.Upvotes != up || post.Downvotes != down || post.Score != score {
		t.Errorf("counters drifted: post has up=%d down=%d score=%d, ledger has up=%d down=%d score=%d",
			post.Upvotes, post.Downvotes, post.Score, up, down, score)
	}
}

func TestCastVote_TwoVoters(t *testing.T) {
	f := newVoteFixture(t, 2)
	svc := NewVoteService(f.db)
	ctx := context.Background()

	steps := []struct {
		voter, direction           int
		score, up, down, userVote int
	}{
		{0, 1, 1, 1, 0, 1},
		{1, -1, 0, 1, 1, -1},
		{0, 0, -1, 0, 1, 0},
		{0, -1, -2, 0, 2, -1},
	}
	for i, s := range steps {
		res, err := svc.CastVote(ctx, f.voter(s.voter), TargetPost, f.post.ID, s.direction)
		if err != nil {
			t.Fatalf("step %d: CastVote failed: %v", i, err)
		}
		assertResult(t, "step", res, s.score, s.up, s.down, s.userVote)
		assertPostMatchesLedger(t, f, f.post.ID)
	}
}

func TestCastVote_ReapplyIsNotToggle(t *testing.T) {
	f := newVoteFixture(t, 1)
	svc := NewVoteService(f.db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := svc.CastVote(ctx, f.voter(0), TargetPost, f.post.ID, 1)
		if err != nil {
			t.Fatalf("CastVote failed: %v", err)
		}
		assertResult(t, "reapply", res, 1, 1, 0, 1)
	}

	var count int64
	f.db.Model(&models.Vote{}).Where("user_id = ? AND post_id = ?", f.users[0].ID, f.post.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one vote row, got %d", count)
	}

	dir, err := svc.UserVote(ctx, f.users[0].ID, TargetPost, f.post.ID)
	if err != nil || dir != 1 {
		t.Errorf("expected user vote 1, got %d (%v)", dir, err)
	}
}

func TestCastVote_RetractWithoutVote(t *testing.T) {
	f := newVoteFixture(t, 1)
	svc := NewVoteService(f.db)

	res, err := svc.CastVote(context.Background(), f.voter(0), TargetPost, f.post.ID, 0)
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	assertResult(t, "retract", res, 0, 0, 0, 0)
}

func TestCastVote_InvalidDirection(t *testing.T) {
	f := newVoteFixture(t, 1)
	svc := NewVoteService(f.db)

	for _, dir := range []int{2, -2, 100} {
		_, err := svc.CastVote(context.Background(), f.voter(0), TargetPost, f.post.ID, dir)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("direction %d: expected ErrInvalidArgument, got %v", dir, err)
		}
	}

	var count int64
	f.db.Model(&models.Vote{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no votes stored, got %d", count)
	}
}

func TestCastVote_UnknownKind(t *testing.T) {
	f := newVoteFixture(t, 1)
	svc := NewVoteService(f.db)

	_, err := svc.CastVote(context.Background(), f.voter(0), TargetKind("user"), f.post.ID, 1)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCastVote_NotFound(t *testing.T) {
	f := newVoteFixture(t, 1)
	svc := NewVoteService(f.db)
	ctx := context.Background()

	if _, err := svc.CastVote(ctx, f.voter(0), TargetPost, 9999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing post: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.CastVote(ctx, f.voter(0), TargetComment, 9999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing comment: expected ErrNotFound, got %v", err)
	}

	outsider := createUser(t, f.db, "outsider", otherNetwork)
	_, err := svc.CastVote(ctx, Voter{UserID: outsider.ID, NetworkID: otherNetwork}, TargetPost, f.post.ID, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("other network: expected ErrNotFound, got %v", err)
	}

	comment := createComment(t, f.db, f.users[0], f.post, "hi", time.Now())
	_, err = svc.CastVote(ctx, Voter{UserID: outsider.ID, NetworkID: otherNetwork}, TargetComment, comment.ID, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("comment in other network: expected ErrNotFound, got %v", err)
	}
}

func TestCastVote_LockedPost(t *testing.T) {
	f := newVoteFixture(t, 1)
	svc := NewVoteService(f.db)
	ctx := context.Background()

	comment := createComment(t, f.db, f.users[0], f.post, "hi", time.Now())
	f.db.Model(&models.Post{}).Where("id = ?", f.post.ID).Update("is_locked", true)

	if _, err := svc.CastVote(ctx, f.voter(0), TargetPost, f.post.ID, 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("post: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.CastVote(ctx, f.voter(0), TargetComment, comment.ID, 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("comment: expected ErrForbidden, got %v", err)
	}
}

func TestCastVote_Comment(t *testing.T) {
	f := newVoteFixture(t, 2)
	svc := NewVoteService(f.db)
	ctx := context.Background()

	comment := createComment(t, f.db, f.users[0], f.post, "hi", time.Now())
	if _, err := svc.CastVote(ctx, f.voter(0), TargetComment, comment.ID, 1); err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	res, err := svc.CastVote(ctx, f.voter(1), TargetComment, comment.ID, 1)
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	assertResult(t, "comment", res, 2, 2, 0, 1)

	var stored models.Comment
	f.db.First(&stored, comment.ID)
	if stored.Score != 2 || stored.Upvotes != 2 || stored.Downvotes != 0 {
		t.Errorf("comment counters not persisted: %+v", stored)
	}

	var post models.Post
	f.db.First(&post, f.post.ID)
	if post.Score != 0 || post.Upvotes != 0 {
		t.Errorf("post counters must not change on comment votes, got score=%d up=%d", post.Score, post.Upvotes)
	}

	// A post vote and a comment vote by the same user coexist.
	if _, err := svc.CastVote(ctx, f.voter(0), TargetPost, f.post.ID, -1); err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	dir, _ := svc.UserVote(ctx, f.users[0].ID, TargetComment, comment.ID)
	if dir != 1 {
		t.Errorf("expected comment vote to survive, got %d", dir)
	}
}

func TestCastVote_ConcurrentVoters(t *testing.T) {
	const voters = 8
	f := newVoteFixture(t, voters)
	svc := NewVoteService(f.db)

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.CastVote(context.Background(), f.voter(i), TargetPost, f.post.ID, 1); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent CastVote failed: %v", err)
	}

	var post models.Post
	f.db.First(&post, f.post.ID)
	if post.Score != voters || post.Upvotes != voters {
		t.Errorf("expected score=%d, got score=%d up=%d", voters, post.Score, post.Upvotes)
	}
}

func TestCastVote_RandomSequenceMatchesLedger(t *testing.T) {
	f := newVoteFixture(t, 4)
	svc := NewVoteService(f.db)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	last := make(map[int]int)
	for i := 0; i < 40; i++ {
		voter := rng.Intn(len(f.users))
		dir := rng.Intn(3) - 1
		res, err := svc.CastVote(ctx, f.voter(voter), TargetPost, f.post.ID, dir)
		if err != nil {
			t.Fatalf("CastVote failed: %v", err)
		}
		last[voter] = dir

		want := 0
		for _, d := range last {
			want += d
		}
		if res.Score != want {
			t.Fatalf("iteration %d: expected score %d, got %d", i, want, res.Score)
		}
	}
	assertPostMatchesLedger(t, f, f.post.ID)
}
