package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("KG_TEST_DURATION", "90s")
	if got := Duration("KG_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("go duration: got=%v", got)
	}
	t.Setenv("KG_TEST_DURATION", "30")
	if got := Duration("KG_TEST_DURATION", time.Second); got != 30*time.Second {
		t.Fatalf("bare seconds: got=%v", got)
	}
	t.Setenv("KG_TEST_DURATION", "soon")
	if got := Duration("KG_TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("fallback: got=%v", got)
	}
}

func TestListAndBool(t *testing.T) {
	t.Setenv("KG_TEST_LIST", " Foo:, ,Bar: ")
	got := List("KG_TEST_LIST")
	if len(got) != 2 || got[0] != "Foo:" || got[1] != "Bar:" {
		t.Fatalf("list: got=%v", got)
	}
	t.Setenv("KG_TEST_BOOL", "off")
	if Bool("KG_TEST_BOOL", true) {
		t.Fatalf("bool: expected false")
	}
	if Int("KG_TEST_MISSING_INT", 7) != 7 {
		t.Fatalf("int default")
	}
}
