package kernel_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tarikcelik1/cooperative-vm/internal/kernel"
	"github.com/tarikcelik1/cooperative-vm/internal/vm"
)

func TestReferenceImageRunsToHalt(t *testing.T) {
	t.Parallel()

	img, err := kernel.NewReferenceImage()
	if err != nil {
		t.Fatalf("NewReferenceImage: %v", err)
	}

	var out bytes.Buffer

	e := vm.New(vm.WithStdout(&out))

	if _, err := vm.NewLoader().Load(e, img); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !e.Halted {
		t.Fatalf("engine did not halt")
	}

	got := out.String()

	if !strings.Contains(got, "hello from the user thread") {
		t.Errorf("stdout missing first message: %q", got)
	}

	if !strings.Contains(got, "still running after yield") {
		t.Errorf("stdout missing second message: %q", got)
	}

	if e.Mem.At(31).Int != kernel.ThreadStateReady {
		t.Errorf("thread 0 STATE = %d, want %d", e.Mem.At(31).Int, kernel.ThreadStateReady)
	}
}
