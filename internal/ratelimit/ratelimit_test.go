package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_AllowsUpToRate(t *testing.T) {
	l := New(5, time.Minute)
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("event %d should be allowed", i+1)
		}
	}
	if l.Allow() {
		t.Fatal("6th event should be denied")
	}
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	l := New(2, 50*time.Millisecond)
	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("3rd should be denied")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("after window reset should be allowed")
	}
}

func TestLimiter_DeniedEventsStillCount(t *testing.T) {
	l := New(1, 50*time.Millisecond)
	l.Allow()
	for i := 0; i < 10; i++ {
		if l.Allow() {
			t.Fatal("over-rate event should be denied within the window")
		}
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("fresh window should allow again regardless of denied backlog")
	}
}
