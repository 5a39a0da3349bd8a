package htrie_test

import (
	"errors"
	"testing"

	"github.com/natsys-lab/htriedb/pkg/htrie"
)

func Test_Remove_ReturnsErrNotFound_When_KeyWasNeverInserted(t *testing.T) {
	t.Parallel()

	tr := newTestTrie(t, trieParams{})
	err := tr.Remove(999)
	if !errors.Is(err, htrie.ErrNotFound) {
		t.Errorf("Remove on a missing key error = %v, want ErrNotFound", err)
	}
}

func Test_Remove_DeletesRecord_When_KeyExists(t *testing.T) {
	t.Parallel()

	tr := newTestTrie(t, trieParams{})
	if _, _, err := tr.Insert(1, []byte("a")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, _, err := tr.Insert(2, []byte("b")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := tr.Remove(1); err != nil {
		t.Fatalf("Remove(1): %v", err)
	}

	if _, ok := tr.Get(1); ok {
		t.Errorf("Get(1) found a record after Remove(1)")
	}
	rec, ok := tr.Get(2)
	if !ok {
		t.Fatalf("Get(2) = not found, want found (Remove(1) should not disturb key 2)")
	}
	if string(rec.Data) != "b" {
		t.Errorf("Get(2).Data = %q, want %q", rec.Data, "b")
	}

	if err := tr.Remove(1); !errors.Is(err, htrie.ErrNotFound) {
		t.Errorf("second Remove(1) error = %v, want ErrNotFound", err)
	}
}

func Test_Remove_DeletesAllDuplicates_When_SameKeyInsertedMultipleTimes(t *testing.T) {
	t.Parallel()

	tr := newTestTrie(t, trieParams{})
	for i := 0; i < 3; i++ {
		if _, _, err := tr.Insert(7, []byte{byte(i)}); err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
	}

	if err := tr.Remove(7); err != nil {
		t.Fatalf("Remove(7): %v", err)
	}
	if _, ok := tr.Get(7); ok {
		t.Errorf("Get(7) found a record after removing all duplicates")
	}

	count, err := tr.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}
}

func Test_Remove_ThenInsert_ReusesSpace_When_KeyIsReInserted(t *testing.T) {
	t.Parallel()

	tr := newTestTrie(t, trieParams{})
	if _, _, err := tr.Insert(3, []byte("old")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Remove(3); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, _, err := tr.Insert(3, []byte("new")); err != nil {
		t.Fatalf("re-Insert: %v", err)
	}

	rec, ok := tr.Get(3)
	if !ok {
		t.Fatalf("Get(3) = not found after re-insert")
	}
	if string(rec.Data) != "new" {
		t.Errorf("Get(3).Data = %q, want %q", rec.Data, "new")
	}
}
