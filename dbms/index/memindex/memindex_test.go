package memindex

import (
	"testing"

	"github.com/kr/pretty"

	"github.com/btree-query-bench/bptidx/dbms/index"
)

func TestMemIndex(t *testing.T) {
	m := New()
	for i, k := range []int32{9, 3, 9, -1, 3, 9} {
		if err := m.Insert(k, index.RecordRef{Page: uint32(i)}); err != nil {
			t.Fatal(err)
		}
	}

	want := []Data{
		{Key: -1, Ref: index.RecordRef{Page: 3}},
		{Key: 3, Ref: index.RecordRef{Page: 1}},
		{Key: 3, Ref: index.RecordRef{Page: 4}},
		{Key: 9, Ref: index.RecordRef{Page: 0}},
		{Key: 9, Ref: index.RecordRef{Page: 2}},
		{Key: 9, Ref: index.RecordRef{Page: 5}},
	}
	if diff := pretty.Diff(want, m.Data); len(diff) > 0 {
		t.Errorf("entries differ:\n%s", pretty.Sprint(diff))
	}

	refs, _ := m.Get(9)
	if len(refs) != 3 || refs[0].Page != 0 || refs[2].Page != 5 {
		t.Errorf("Get(9) = %v", refs)
	}
	if refs, _ := m.Get(4); refs != nil {
		t.Errorf("Get(4) = %v", refs)
	}

	tests := []struct {
		start, end int32
		want       []int32
	}{
		{start: 0, end: 9, want: []int32{3, 3, 9, 9, 9}},
		{start: 4, end: 8, want: nil},
		{start: -5, end: 2, want: []int32{-1}},
		{start: 10, end: 20, want: nil},
	}
	for _, tt := range tests {
		it, _ := m.Range(tt.start, tt.end)
		var got []int32
		for it.Next() {
			got = append(got, it.Key())
		}
		if diff := pretty.Diff(tt.want, got); len(diff) > 0 {
			t.Errorf("Range(%d, %d) differs:\n%s", tt.start, tt.end, pretty.Sprint(diff))
		}
	}
}
