package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scribewell/plugin-gateway/pkg/logger"
)

type fakeLockStore struct {
	values map[string]string
	setErr error
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) Get(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestRedisLockMutualExclusion(t *testing.T) {
	store := newFakeLockStore()
	ctx := context.Background()

	first, err := NewRedisLock(store, "sw:lock:test", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewRedisLock(store, "sw:lock:test", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second acquire must fail while lock is held")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestReleaseLeavesForeignLockAlone(t *testing.T) {
	store := newFakeLockStore()
	ctx := context.Background()

	lock, err := NewRedisLock(store, "sw:lock:foreign", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}

	// Simulate expiry plus takeover by another instance.
	store.values["sw:lock:foreign"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["sw:lock:foreign"] != "someone-else" {
		t.Fatal("release must not delete a lock it no longer owns")
	}
}

func TestRunCycleSkipsWhenLocked(t *testing.T) {
	store := newFakeLockStore()
	logg := logger.New(logger.Options{ServiceName: "test"})

	lock, err := NewRedisLock(store, "sw:lock:cycle", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	job := &countingJob{name: "noop"}
	svc, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     lock,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Another instance holds the lock: the cycle runs nothing.
	store.values["sw:lock:cycle"] = "other"
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran %d times under a foreign lock", job.runs)
	}

	delete(store.values, "sw:lock:cycle")
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if job.runs != 1 {
		t.Fatalf("job runs = %d, want 1", job.runs)
	}
	if _, held := store.values["sw:lock:cycle"]; held {
		t.Fatal("lock must be released after the cycle")
	}
}

func TestCycleContinuesPastFailingJob(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	failing := &countingJob{name: "failing", err: errors.New("boom")}
	healthy := &countingJob{name: "healthy"}

	svc, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(failing, healthy),
		Lock:     NoopLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if failing.runs != 1 || healthy.runs != 1 {
		t.Fatalf("runs = %d/%d, want 1/1", failing.runs, healthy.runs)
	}
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	reg := NewRegistry(nil, &countingJob{name: "a"}, nil)
	if len(reg.Jobs()) != 1 {
		t.Fatalf("jobs = %d, want 1", len(reg.Jobs()))
	}
}
