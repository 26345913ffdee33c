package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/blind"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, WithTTL(time.Hour)), mr
}

func sq(t *testing.T, s string) nchess.Square {
	t.Helper()
	v, err := rules.ParseSquare(s)
	if err != nil {
		t.Fatalf("square %s: %v", s, err)
	}
	return v
}

func TestStartResumeAndReplace(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	first, resumed, err := st.Start(ctx, "u1", "room", nchess.White)
	if err != nil || resumed {
		t.Fatalf("start: %v resumed=%v", err, resumed)
	}
	if ttl := mr.TTL(sessionKey(first.ID)); ttl != time.Hour {
		t.Fatalf("ttl = %s", ttl)
	}
	again, resumed, err := st.Start(ctx, "u1", "room", nchess.White)
	if err != nil || !resumed || again.ID != first.ID {
		t.Fatalf("resume: %v resumed=%v id=%s", err, resumed, again.ID)
	}
	black, resumed, err := st.Start(ctx, "u1", "room", nchess.Black)
	if err != nil || resumed || black.ID == first.ID || black.Color != "black" {
		t.Fatalf("replace: %+v %v", black, err)
	}
	if _, err := st.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old session should be gone, got %v", err)
	}
}

func TestCommitUndoResetPersist(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	sess, _, err := st.Start(ctx, "u1", "", nchess.White)
	if err != nil {
		t.Fatal(err)
	}

	if _, san, err := st.Commit(ctx, sess.ID, sq(t, "e2"), sq(t, "e4")); err != nil || san != "e4" {
		t.Fatalf("commit e4: %q %v", san, err)
	}
	// phantom capture into an empty square
	got, san, err := st.Commit(ctx, sess.ID, sq(t, "e4"), sq(t, "d5"))
	if err != nil || san != "exd5" {
		t.Fatalf("commit exd5: %q %v", san, err)
	}
	if !reflect.DeepEqual(got.Moves, []string{"e4", "exd5"}) {
		t.Fatalf("moves = %v", got.Moves)
	}
	if _, _, err := st.Commit(ctx, sess.ID, sq(t, "a1"), sq(t, "a5")); !errors.Is(err, blind.ErrIllegalMove) {
		t.Fatalf("expected illegal move, got %v", err)
	}

	targets, err := st.Targets(ctx, sess.ID, sq(t, "d5"))
	if err != nil || len(targets) == 0 {
		t.Fatalf("targets: %v %v", targets, err)
	}

	got, err = st.Undo(ctx, sess.ID)
	if err != nil || !reflect.DeepEqual(got.Moves, []string{"e4"}) {
		t.Fatalf("undo: %v %v", got, err)
	}
	reloaded, err := st.Active(ctx, "u1")
	if err != nil || len(reloaded.Moves) != 1 {
		t.Fatalf("active: %+v %v", reloaded, err)
	}
	if _, err := st.Reset(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Undo(ctx, sess.ID); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected nothing to undo, got %v", err)
	}
}

func TestRecorderRebuildsBoard(t *testing.T) {
	sess := &Session{Color: "black", Moves: []string{"e5", "exd4"}}
	rec, err := sess.Recorder()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Len() != 2 || rec.Color() != nchess.Black {
		t.Fatalf("recorder len=%d color=%v", rec.Len(), rec.Color())
	}
	if rec.Board().Piece(sq(t, "d4")) != nchess.BlackPawn {
		t.Fatal("pawn should stand on d4")
	}
}

func TestCloseAndMissing(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()
	sess, _, err := st.Start(ctx, "u2", "", nchess.Black)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Close(ctx, sess.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if mr.Exists(ownerKey("u2")) {
		t.Fatal("owner index should be removed")
	}
	if _, err := st.Active(ctx, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("active after close: %v", err)
	}
	if _, err := st.Undo(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("undo missing: %v", err)
	}
}

func TestStaleOwnerIndexIsDropped(t *testing.T) {
	st, mr := newTestStore(t)
	if err := mr.Set(ownerKey("u3"), "gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Active(context.Background(), "u3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if mr.Exists(ownerKey("u3")) {
		t.Fatal("stale index should be deleted")
	}
}
