package trie

import "testing"

func TestLongestPrefix(t *testing.T) {
	tr := New[int]()
	tr.Insert("-", 1)
	tr.Insert("//", 2)
	tr.Insert("/", 3)
	tr.Insert("^", 4)

	v, n, ok := tr.Query("// 2")
	if !ok || n != 2 || v != 2 {
		t.Fatalf("Query(\"// 2\") = %d,%d,%v, want 2,2,true", v, n, ok)
	}

	v, n, ok = tr.Query("/ 2")
	if !ok || n != 1 || v != 3 {
		t.Fatalf("Query(\"/ 2\") = %d,%d,%v, want 3,1,true", v, n, ok)
	}
}

func TestNoMatch(t *testing.T) {
	tr := New[int]()
	tr.Insert("+", 1)
	_, _, ok := tr.Query("x")
	if ok {
		t.Fatal("expected no match")
	}
}

func TestEmptyTree(t *testing.T) {
	tr := New[string]()
	_, n, ok := tr.Query("anything")
	if ok || n != 0 {
		t.Fatal("empty tree should never match")
	}
}
