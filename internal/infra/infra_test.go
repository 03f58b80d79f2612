package infra

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mr.Exists("k"); !got {
		t.Fatalf("expected key in miniredis")
	}
}

func TestNewRedisClientRejectsEmptyURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "", "unity-test"); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNewPostgresPoolRejectsBadURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), "", "unity-test"); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewPostgresPool(context.Background(), "postgres://%zz", "unity-test"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNewNATSConnDisabled(t *testing.T) {
	conn, err := NewNATSConn("", "unity-test", nil)
	if err != nil || conn != nil {
		t.Fatalf("expected disabled feed, got %v %v", conn, err)
	}
}
