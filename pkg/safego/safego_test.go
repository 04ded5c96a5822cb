package safego

import (
	"testing"

	"go.uber.org/zap"
)

func TestRun_RecoversPanic(t *testing.T) {
	if Run(zap.NewNop(), "boom", func() { panic("boom") }) {
		t.Fatal("expected ok=false after panic")
	}
}

func TestRun_NoPanic(t *testing.T) {
	called := false
	if !Run(zap.NewNop(), "fine", func() { called = true }) {
		t.Fatal("expected ok=true")
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestGo_RunsInBackground(t *testing.T) {
	done := make(chan struct{})
	Go(zap.NewNop(), "bg", func() {
		defer close(done)
		panic("ignored")
	})
	<-done
}
