package uthread

import (
	"testing"
	"time"
)

func await(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestLeaveFairness(t *testing.T) {
	const n = 4
	const k = 20

	sched := NewScheduler(1)
	sched.Start()
	defer sched.Stop()

	counts := make([]int, n)
	// snapshot holds each uthread's count once k iterations have run
	// in total; with fair round-robin each has had about k/n of them.
	var snapshot []int
	iterations := 0
	group := NewGroup()

	for i := 0; i < n; i++ {
		i := i
		group.Spawn(sched.Worker(0), func(self *UThread) {
			for j := 0; j < k; j++ {
				counts[i]++
				iterations++
				if iterations == k {
					snapshot = append([]int(nil), counts...)
				}
				self.Leave()
			}
		})
	}

	done := make(chan struct{})
	sched.Worker(0).Spawn(func(self *UThread) {
		group.Join(self)
		close(done)
	})
	await(t, done, "fairness group join")

	total := 0
	for i, c := range counts {
		total += c
		if s := snapshot[i]; s < k/n || s > k/n+2 {
			t.Errorf("uthread %d ran %d of the first %d iterations, want close to %d", i, s, k, k/n)
		}
	}
	if total != n*k {
		t.Fatalf("total iterations = %d, want %d", total, n*k)
	}
}

func TestSemaWakeup(t *testing.T) {
	sched := NewScheduler(2)
	sched.Start()
	defer sched.Stop()

	sema := NewSema(0)
	woke := make(chan struct{})

	sched.Worker(0).Spawn(func(self *UThread) {
		sema.Down(self)
		close(woke)
	})

	// Give the blocked UThread a chance to register as a waiter before
	// the Up from the other OS thread arrives.
	time.Sleep(10 * time.Millisecond)
	sema.Up()

	await(t, woke, "sema wakeup across OS threads")
}

func TestFutureAcrossWorkers(t *testing.T) {
	sched := NewScheduler(2)
	sched.Start()
	defer sched.Stop()

	future := NewFuture[int]()

	sched.Worker(1).Spawn(func(self *UThread) {
		future.Post(21 * 2)
	})

	resultCh := make(chan int, 1)
	sched.Worker(0).Spawn(func(self *UThread) {
		v, err := future.Result(self)
		if err != nil {
			t.Errorf("unexpected future error: %v", err)
		}
		resultCh <- v
	})

	select {
	case v := <-resultCh:
		if v != 42 {
			t.Fatalf("future result = %d, want 42", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for future result")
	}
}

func TestEventLevelTriggered(t *testing.T) {
	sched := NewScheduler(1)
	sched.Start()
	defer sched.Stop()

	ev := NewEvent()
	firstDone := make(chan struct{})
	secondDone := make(chan struct{})

	sched.Worker(0).Spawn(func(self *UThread) {
		ev.Wait(self)
		close(firstDone)
	})

	time.Sleep(10 * time.Millisecond)
	ev.Set()
	await(t, firstDone, "first event waiter")

	// Set is level-triggered: a later Wait must return immediately.
	sched.Worker(0).Spawn(func(self *UThread) {
		ev.Wait(self)
		close(secondDone)
	})
	await(t, secondDone, "second event waiter after Set")
}

func TestLockMutualExclusion(t *testing.T) {
	sched := NewScheduler(1)
	sched.Start()
	defer sched.Stop()

	lock := NewLock()
	counter := 0
	group := NewGroup()

	for i := 0; i < 8; i++ {
		group.Spawn(sched.Worker(0), func(self *UThread) {
			lock.Lock(self)
			local := counter
			self.Leave()
			counter = local + 1
			lock.Unlock()
		})
	}

	done := make(chan struct{})
	sched.Worker(0).Spawn(func(self *UThread) {
		group.Join(self)
		close(done)
	})
	await(t, done, "lock mutual exclusion group join")

	if counter != 8 {
		t.Fatalf("counter = %d, want 8 (lock should have serialized every increment)", counter)
	}
}
