package cache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestFormatKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	c := NewRedisCacheFromClient(client, "scanner", time.Hour)

	got := c.formatKey("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	want := "scanner:player:069a79f4-44e9-4726-a5be-fca90e38aaf5"
	if got != want {
		t.Errorf("formatKey = %q, want %q", got, want)
	}
}
