// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package funcutil

import (
	"reflect"
	"testing"
)

func TestSetOperations(t *testing.T) {
	a := SetOf("x", "y")
	b := SetOf("y", "z")
	if i := Intersect(a, b); !reflect.DeepEqual(i, SetOf("y")) {
		t.Errorf("unexpected intersection %v", i)
	}
	// Union mutates its first argument
	if u := Union(a, b); !reflect.DeepEqual(u, SetOf("x", "y", "z")) || !a["z"] {
		t.Errorf("unexpected union %v", u)
	}
	c := CopySet(a)
	c["w"] = true
	if a["w"] {
		t.Errorf("copy should not alias the original set")
	}
	if SetKey(SetOf("b", "a")) != SetKey(SetOf("a", "b")) {
		t.Errorf("set keys should not depend on insertion order")
	}
	if SetKey(map[string]bool{"a": true, "b": false}) != "a" {
		t.Errorf("false entries are not members of the set")
	}
}

func TestMerge(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	Merge(a, map[string]int{"y": 3, "z": 4}, func(x int, y int) int { return x + y })
	expected := map[string]int{"x": 1, "y": 5, "z": 4}
	if !reflect.DeepEqual(a, expected) {
		t.Errorf("expected %v, got %v", expected, a)
	}
}

func TestMapParallelKeepsOrder(t *testing.T) {
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}
	for _, workers := range []int{0, 1, 4, 200} {
		out := MapParallel(in, func(x int) int { return x * x }, workers)
		for i, y := range out {
			if y != i*i {
				t.Fatalf("with %d workers: expected %d at %d, got %d", workers, i*i, i, y)
			}
		}
	}
	if out := MapParallel([]int{}, func(x int) int { return x }, 2); len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}

func TestSlices(t *testing.T) {
	a := []int{3, 1, 2}
	if !Exists(a, func(x int) bool { return x > 2 }) || Exists(a, func(x int) bool { return x > 3 }) {
		t.Errorf("unexpected Exists result")
	}
	if f := Filter(a, func(x int) bool { return x != 1 }); !reflect.DeepEqual(f, []int{3, 2}) {
		t.Errorf("unexpected filter result %v", f)
	}
	Reverse(a)
	if !reflect.DeepEqual(a, []int{2, 1, 3}) {
		t.Errorf("unexpected reversed slice %v", a)
	}
	if keys := SortedKeys(map[string]int{"b": 1, "a": 2}); !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestOptional(t *testing.T) {
	m := map[string]int{"a": 1}
	v, ok := m["a"]
	if o := OptionalOf(v, ok); !o.IsSome() || o.Value() != 1 {
		t.Errorf("expected some value")
	}
	v, ok = m["b"]
	o := OptionalOf(v, ok)
	if !o.IsNone() || o.ValueOr(7) != 7 {
		t.Errorf("expected none")
	}
	if s := Some(2); s.ValueOr(0) != 2 || None[int]().IsSome() {
		t.Errorf("unexpected optional values")
	}
}
