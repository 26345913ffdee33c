package redisutil

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestParseURL(t *testing.T) {
	opts, err := ParseURL("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 || opts.TLSConfig != nil {
		t.Fatalf("opts = %+v", opts)
	}
	tlsOpts, err := ParseURL("rediss://cache.example:6379")
	if err != nil || tlsOpts.TLSConfig == nil || tlsOpts.TLSConfig.ServerName != "cache.example" {
		t.Fatalf("tls opts = %+v, %v", tlsOpts, err)
	}
	for _, bad := range []string{"http://x:1", "redis://", "redis://h:1/x"} {
		if _, err := ParseURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb, err := Connect(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()
	if _, err := Connect(context.Background(), ""); err == nil {
		t.Fatal("empty url should fail")
	}
}
