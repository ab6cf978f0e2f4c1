package utils

import (
	"reflect"
	"testing"
)

func TestRemoveFirst(t *testing.T) {
	tests := []struct {
		in   []int
		item int
		want []int
	}{
		{in: []int{1, 2, 3}, item: 2, want: []int{1, 3}},
		{in: []int{1, 2, 2, 3}, item: 2, want: []int{1, 2, 3}},
		{in: []int{1, 2, 3}, item: 4, want: []int{1, 2, 3}},
		{in: []int{}, item: 1, want: []int{}},
	}

	for _, tt := range tests {
		got := RemoveFirst(append([]int{}, tt.in...), tt.item)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("RemoveFirst(%v, %d) = %v, want %v", tt.in, tt.item, got, tt.want)
		}
	}

	if !Contains([]string{"a", "b"}, "b") || Contains([]string{"a"}, "c") {
		t.Error("Contains")
	}
}
