package infra

import (
	"context"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if client.Options().ReadTimeout != redisOpTimeout {
		t.Fatalf("expected default read timeout, got %v", client.Options().ReadTimeout)
	}

	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatal("expected empty url to fail")
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisClient(context.Background(), "redis://"+addr+"/0"); err == nil {
		t.Fatal("expected unreachable redis to fail")
	}
}

func TestSchemaDeclaresUniqueness(t *testing.T) {
	for _, want := range []string{
		"UNIQUE (tenant_id, user_identifier)",
		"publishable_key TEXT NOT NULL UNIQUE",
		"UNIQUE (tenant_id, email)",
		"CREATE UNIQUE INDEX IF NOT EXISTS otp_codes_live_idx ON otp_codes (scope, identifier) WHERE used = false",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("schema is missing %q", want)
		}
	}
}

