package app

import (
	"context"
	"testing"
	"time"
)

func TestLocalLockerExclusive(t *testing.T) {
	lock := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "campusconnect:sync:1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	if _, ok, err := lock.Acquire(ctx, "campusconnect:sync:1", time.Minute); err != nil || ok {
		t.Fatalf("second acquire must not succeed: ok=%v err=%v", ok, err)
	}

	// A different broker's key is independent.
	release2, ok, err := lock.Acquire(ctx, "campusconnect:sync:2", time.Minute)
	if err != nil || !ok {
		t.Fatalf("other key acquire: ok=%v err=%v", ok, err)
	}
	release2()

	release()
	if _, ok, err := lock.Acquire(ctx, "campusconnect:sync:1", time.Minute); err != nil || !ok {
		t.Fatalf("reacquire after release: ok=%v err=%v", ok, err)
	}
}
