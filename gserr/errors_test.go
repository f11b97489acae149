package gserr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/casper-network/casper-global-state/gserr"
)

func TestConstErrorSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("reading key %x: %w", []byte{0x01}, gserr.RootNotFound)
	if !errors.Is(wrapped, gserr.RootNotFound) {
		t.Fatalf("expected wrapped error to match gserr.RootNotFound, got %v", wrapped)
	}
	if errors.Is(wrapped, gserr.Overflow) {
		t.Fatalf("did not expect wrapped root_not_found to match overflow")
	}
}

func TestConstErrorMessage(t *testing.T) {
	if gserr.TypeMismatch.Error() != "type_mismatch" {
		t.Fatalf("unexpected message: %q", gserr.TypeMismatch.Error())
	}
}
