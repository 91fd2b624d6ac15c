package series

import (
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name        string
		dependent   []Sample
		independent []Sample
		want        []Pair
	}{
		{
			name:        "averages each window",
			dependent:   samples([2]float64{0, 10}, [2]float64{5, 20}, [2]float64{10, 30}),
			independent: samples([2]float64{1, 100}, [2]float64{2, 200}, [2]float64{6, 50}),
			want:        []Pair{{X: 10, Y: 150}, {X: 20, Y: 50}},
		},
		{
			name:        "single dependent sample",
			dependent:   samples([2]float64{0, 1}),
			independent: samples([2]float64{0, 1}),
			want:        []Pair{},
		},
		{
			name:        "empty dependent",
			dependent:   nil,
			independent: samples([2]float64{0, 1}),
			want:        []Pair{},
		},
		{
			name:        "early independents are skipped",
			dependent:   samples([2]float64{10, 1}, [2]float64{20, 2}),
			independent: samples([2]float64{1, 999}, [2]float64{5, 999}, [2]float64{12, 4}),
			want:        []Pair{{X: 1, Y: 4}},
		},
		{
			name:        "empty windows are omitted",
			dependent:   samples([2]float64{0, 1}, [2]float64{1, 2}, [2]float64{2, 3}, [2]float64{3, 4}),
			independent: samples([2]float64{0.5, 8}, [2]float64{2.5, 6}),
			want:        []Pair{{X: 1, Y: 8}, {X: 3, Y: 6}},
		},
		{
			name:        "window is half open",
			dependent:   samples([2]float64{0, 1}, [2]float64{5, 2}, [2]float64{10, 3}),
			independent: samples([2]float64{0, 2}, [2]float64{5, 4}, [2]float64{10, 100}),
			want:        []Pair{{X: 1, Y: 2}, {X: 2, Y: 4}},
		},
		{
			name:        "no independent data",
			dependent:   samples([2]float64{0, 1}, [2]float64{5, 2}),
			independent: nil,
			want:        []Pair{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.dependent, tt.independent)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMerge_EmitsAtMostOnePairPerWindow(t *testing.T) {
	var dep, ind []Sample
	for i := 0; i < 50; i++ {
		dep = append(dep, Sample{T: float64(i * 10), V: float64(i)})
	}
	for i := 0; i < 500; i++ {
		ind = append(ind, Sample{T: float64(i) + 0.5, V: 1})
	}

	got := Merge(dep, ind)
	if len(got) > len(dep)-1 {
		t.Fatalf("len(Merge()) = %d, want <= %d", len(got), len(dep)-1)
	}
	for _, p := range got {
		if p.Y != 1 {
			t.Fatalf("mean = %v, want 1", p.Y)
		}
	}
}

func TestDecimate(t *testing.T) {
	var in []Sample
	for i := 0; i < 1000; i++ {
		in = append(in, Sample{T: float64(i), V: float64(i)})
	}

	got := Decimate(in, 100)
	if len(got) != 100 {
		t.Fatalf("len(Decimate) = %d, want 100", len(got))
	}
	if got[0] != in[0] || got[1] != in[10] {
		t.Errorf("unexpected stride: %v, %v", got[0], got[1])
	}

	short := Decimate(in[:20], 100)
	if len(short) != 20 {
		t.Errorf("short input len = %d, want 20", len(short))
	}
}

func BenchmarkMerge(b *testing.B) {
	dep := make([]Sample, 10000)
	ind := make([]Sample, 100000)
	for i := range dep {
		dep[i] = Sample{T: float64(i * 10), V: float64(i)}
	}
	for i := range ind {
		ind[i] = Sample{T: float64(i), V: float64(i % 7)}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Merge(dep, ind)
	}
}
