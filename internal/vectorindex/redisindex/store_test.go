package redisindex

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/andar-cloud/ragkit/internal/domain"
)

func TestEnsureCollection_New(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "ragkit:collection:docs")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HSET", "ragkit:collection:docs", "dim", "4")).
		Return(mock.Result(mock.RedisInt64(1)))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "ragkit:docs:idx"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.EnsureCollection(context.Background(), "docs", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_ExistingSameDim(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "ragkit:collection:docs")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"dim": mock.RedisString("4"),
		})))

	s := NewStoreForTest(c)
	if err := s.EnsureCollection(context.Background(), "docs", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_DimensionMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "ragkit:collection:docs")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"dim": mock.RedisString("4"),
		})))

	s := NewStoreForTest(c)
	err := s.EnsureCollection(context.Background(), "docs", 8)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnsureCollection_ConcurrentCreateRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "ragkit:collection:docs")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET"
		})).
		Return(mock.Result(mock.RedisInt64(1)))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	if err := s.EnsureCollection(context.Background(), "docs", 4); err != nil {
		t.Fatalf("lost race should be a no-op, got %v", err)
	}
}

func TestUpsert_MissingCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "ragkit:collection:ghost")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})))

	s := NewStoreForTest(c)
	err := s.Upsert(context.Background(), "ghost", []domain.Record{
		{ID: "a", Text: "a", Vector: []float32{1, 0}},
	})
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestUpsert_DimensionValidated(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "ragkit:collection:docs")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"dim": mock.RedisString("2"),
		})))

	s := NewStoreForTest(c)
	err := s.Upsert(context.Background(), "docs", []domain.Record{
		{ID: "a", Text: "a", Vector: []float32{1, 0, 0}},
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestUpsert_PipelinedHashes(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "ragkit:collection:docs")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"dim": mock.RedisString("2"),
		})))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(3)),
			mock.Result(mock.RedisInt64(3)),
		})

	s := NewStoreForTest(c)
	err := s.Upsert(context.Background(), "docs", []domain.Record{
		{ID: "a::0", Text: "one", Vector: []float32{1, 0}, Payload: map[string]string{"source": "a"}},
		{ID: "a::1", Text: "two", Vector: []float32{0, 1}, Payload: map[string]string{"source": "a"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearch_ParsesMatchesAndConvertsScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "ragkit:docs:idx"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("ragkit:docs:notes.txt::0"),
			mock.RedisArray(
				mock.RedisString("content"), mock.RedisString("the sky is blue"),
				mock.RedisString("__vector_score"), mock.RedisString("0.25"),
				mock.RedisString("source"), mock.RedisString("notes.txt"),
				mock.RedisString("chunk"), mock.RedisString("0"),
			),
			mock.RedisString("ragkit:docs:notes.txt::1"),
			mock.RedisArray(
				mock.RedisString("content"), mock.RedisString("grass is green"),
				mock.RedisString("__vector_score"), mock.RedisString("0.5"),
				mock.RedisString("source"), mock.RedisString("notes.txt"),
				mock.RedisString("chunk"), mock.RedisString("1"),
			),
		)))

	s := NewStoreForTest(c)
	matches, err := s.Search(context.Background(), "docs", []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "notes.txt::0" {
		t.Errorf("ID = %q, key prefix not stripped", matches[0].ID)
	}
	if matches[0].Text != "the sky is blue" {
		t.Errorf("Text = %q", matches[0].Text)
	}
	// distance 0.25 -> similarity 0.75
	if math.Abs(matches[0].Score-0.75) > 1e-9 {
		t.Errorf("Score = %f, expected 0.75", matches[0].Score)
	}
	if matches[0].Payload["source"] != "notes.txt" || matches[0].Payload["chunk"] != "0" {
		t.Errorf("payload = %v", matches[0].Payload)
	}
	if _, ok := matches[0].Payload["content"]; ok {
		t.Error("content leaked into payload")
	}
	if _, ok := matches[0].Payload["__vector_score"]; ok {
		t.Error("score field leaked into payload")
	}
}

func TestSearch_UnknownIndexIsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("Unknown index name")))

	s := NewStoreForTest(c)
	matches, err := s.Search(context.Background(), "docs", []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches != nil {
		t.Errorf("expected nil matches, got %v", matches)
	}
}

func TestSearch_KZeroSkipsRedis(t *testing.T) {
	s := NewStoreForTest(nil) // client not called
	matches, err := s.Search(context.Background(), "docs", []float32{1, 0}, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches != nil {
		t.Errorf("expected nil matches, got %v", matches)
	}
}

func TestCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "ragkit:docs:idx", "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(7))))

	s := NewStoreForTest(c)
	count, err := s.Count(context.Background(), "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, expected 7", count)
	}
}

func TestCount_UnknownIndexIsZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("no such index")))

	s := NewStoreForTest(c)
	count, err := s.Count(context.Background(), "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, expected 0", count)
	}
}
