package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), PairKey("c1", "app", "stu"))
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("%d holders at once", maxInside)
	}
}

func exerciseTimeout(t *testing.T, l Locker) {
	t.Helper()
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second acquire err = %v, want ErrNotAcquired", err)
	}
	// other keys are independent
	other, err := l.Acquire(context.Background(), "other")
	if err != nil {
		t.Fatal(err)
	}
	other()
	release()
	again, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("after release: %v", err)
	}
	again()
}

func TestLocalLocker(t *testing.T) {
	l := NewLocal()
	exerciseMutualExclusion(t, l)
	exerciseTimeout(t, l)
	if len(l.slots) != 0 {
		t.Fatalf("%d slots leaked", len(l.slots))
	}
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	release()
	release()
	if len(l.slots) != 0 {
		t.Fatal("slot leaked")
	}
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker(t *testing.T) {
	_, client := newMiniRedis(t)
	l := NewRedis(client, time.Second)
	exerciseMutualExclusion(t, l)
	exerciseTimeout(t, l)
}

func TestRedisReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newMiniRedis(t)
	l := NewRedis(client, time.Second)
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	// lock expired and was taken over by another holder
	mr.FastForward(2 * time.Second)
	if err := mr.Set("k", "someone-else"); err != nil {
		t.Fatal(err)
	}
	release()
	if got, _ := mr.Get("k"); got != "someone-else" {
		t.Fatalf("foreign lock removed, key = %q", got)
	}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = client.Close()
	if _, err := NewRedisClient(context.Background(), "127.0.0.1:1", "", 0); err == nil {
		t.Fatal("expected ping failure")
	}
}
