package securestore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.enc")
	return OpenWithKey(path, []byte("test-master-key"))
}

func TestSetGetDelete(t *testing.T) {
	s := testStore(t)

	if err := s.Set("attestation_key_id", "key-123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get("attestation_key_id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "key-123" {
		t.Errorf("Get() = %q, want 'key-123'", got)
	}

	if err := s.Delete("attestation_key_id"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err = s.Get("attestation_key_id")
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissingEntry(t *testing.T) {
	s := testStore(t)

	if err := s.Delete("never-set"); err != nil {
		t.Errorf("Delete() of missing entry error = %v, want nil", err)
	}
}

func TestCounterStartsAtZero(t *testing.T) {
	s := testStore(t)

	n, err := s.Counter()
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Counter() = %d, want 0", n)
	}
}

func TestIncrementCounter(t *testing.T) {
	s := testStore(t)

	for want := uint64(1); want <= 5; want++ {
		got, err := s.IncrementCounter()
		if err != nil {
			t.Fatalf("IncrementCounter() error = %v", err)
		}
		if got != want {
			t.Errorf("IncrementCounter() = %d, want %d", got, want)
		}
	}

	n, err := s.Counter()
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Counter() = %d, want 5", n)
	}
}

func TestCounterSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")
	key := []byte("test-master-key")

	s1 := OpenWithKey(path, key)
	if _, err := s1.IncrementCounter(); err != nil {
		t.Fatalf("IncrementCounter() error = %v", err)
	}
	if _, err := s1.IncrementCounter(); err != nil {
		t.Fatalf("IncrementCounter() error = %v", err)
	}

	// Fresh handle simulates a process restart.
	s2 := OpenWithKey(path, key)
	n, err := s2.Counter()
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Counter() after reopen = %d, want 2", n)
	}
}

func TestConcurrentIncrementsNoDuplicatesNoGaps(t *testing.T) {
	s := testStore(t)

	const n = 50
	results := make(chan uint64, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.IncrementCounter()
			if err != nil {
				t.Errorf("IncrementCounter() error = %v", err)
				return
			}
			results <- v
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[uint64]bool)
	for v := range results {
		if seen[v] {
			t.Errorf("duplicate counter value %d", v)
		}
		seen[v] = true
	}

	for want := uint64(1); want <= n; want++ {
		if !seen[want] {
			t.Errorf("missing counter value %d", want)
		}
	}
}

func TestClearCounter(t *testing.T) {
	s := testStore(t)

	if _, err := s.IncrementCounter(); err != nil {
		t.Fatalf("IncrementCounter() error = %v", err)
	}
	if err := s.ClearCounter(); err != nil {
		t.Fatalf("ClearCounter() error = %v", err)
	}

	n, err := s.Counter()
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Counter() after clear = %d, want 0", n)
	}
}

func TestFileIsEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")
	s := OpenWithKey(path, []byte("test-master-key"))

	if err := s.Set("api_key", "sk-very-secret"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if string(raw[:4]) != magicHeader {
		t.Errorf("file magic = %q, want %q", raw[:4], magicHeader)
	}

	// The plaintext value must not appear on disk.
	if contains(raw, []byte("sk-very-secret")) {
		t.Error("plaintext secret found in store file")
	}
}

func TestWrongMasterKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.enc")

	s1 := OpenWithKey(path, []byte("key-a"))
	if err := s1.Set("name", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	s2 := OpenWithKey(path, []byte("key-b"))
	if _, err := s2.Get("name"); err == nil {
		t.Error("Get() with wrong master key should fail")
	}
}

func contains(haystack, needle []byte) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
