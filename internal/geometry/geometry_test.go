package geometry

import "testing"

func TestResolveSize_EdgeToEdgeIgnoresAssetSize(t *testing.T) {
	for size := EdgeToEdge; size <= MaxSize; size++ {
		p := Placement{Position: BottomRight, Size: size, Width: 123, Height: 4567}
		got := ResolveSize(p, 1920, 1080)
		if got != (Size{1920, 1080}) {
			t.Fatalf("ResolveSize(size=%d) = %+v, want {1920 1080}", size, got)
		}
	}
}

func TestResolveSize(t *testing.T) {
	tests := []struct {
		name string
		p    Placement
		w, h int
		want Size
	}{
		{"landscape half", Placement{Size: 50}, 800, 600, Size{400, 300}},
		{"portrait half", Placement{Size: 50}, 600, 800, Size{300, 400}},
		{"square quarter", Placement{Size: 25}, 400, 400, Size{100, 100}},
		{"height from photo aspect", Placement{Size: 30, Width: 50, Height: 900}, 1000, 800, Size{300, 240}},
		{"rounds to nearest pixel", Placement{Size: 10}, 1005, 1000, Size{101, 100}},
		{"unknown photo falls back to asset", Placement{Size: 50, Width: 200, Height: 100}, 0, 0, Size{100, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveSize(tt.p, tt.w, tt.h); got != tt.want {
				t.Errorf("ResolveSize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolvePosition(t *testing.T) {
	tests := []struct {
		name string
		p    Placement
		want Point
	}{
		{"center", Placement{Position: Center, Size: 50}, Point{200, 150}},
		{"default is center", Placement{Position: "sideways", Size: 50}, Point{200, 150}},
		{"top-left", Placement{Position: TopLeft, Size: 50}, Point{0, 0}},
		{"top-right", Placement{Position: TopRight, Size: 50}, Point{400, 0}},
		{"bottom-left", Placement{Position: BottomLeft, Size: 50}, Point{0, 300}},
		{"bottom-right", Placement{Position: BottomRight, Size: 50}, Point{400, 300}},
		{"custom", Placement{Position: Custom, Size: 50, X: 10, Y: 20}, Point{80, 120}},
		{"custom may overflow", Placement{Position: Custom, Size: 50, X: 90, Y: 90}, Point{720, 540}},
		{"edge-to-edge ignores custom", Placement{Position: Custom, Size: 100, X: 50, Y: 50}, Point{0, 0}},
		{"edge-to-edge ignores anchor", Placement{Position: BottomRight, Size: 150}, Point{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePosition(tt.p, 800, 600); got != tt.want {
				t.Errorf("ResolvePosition() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolvePosition_StaysInsidePhoto(t *testing.T) {
	anchors := []Position{Center, TopLeft, TopRight, BottomLeft, BottomRight}
	photos := []Size{{800, 600}, {600, 800}, {500, 500}, {1921, 1079}, {3, 7}}

	for _, photo := range photos {
		for _, pos := range anchors {
			for size := MinSize; size <= MaxSize; size++ {
				p := Placement{Position: pos, Size: size}
				at := ResolvePosition(p, photo.Width, photo.Height)
				sz := ResolveSize(p, photo.Width, photo.Height)
				if at.X < 0 || at.Y < 0 || at.X+sz.Width > photo.Width || at.Y+sz.Height > photo.Height {
					t.Fatalf("photo %+v pos %s size %d: overlay %+v at %+v leaves the photo",
						photo, pos, size, sz, at)
				}
			}
		}
	}
}

func TestValidPosition(t *testing.T) {
	for _, p := range []Position{Center, TopLeft, TopRight, BottomLeft, BottomRight, Custom} {
		if !ValidPosition(p) {
			t.Errorf("ValidPosition(%q) = false, want true", p)
		}
	}
	if ValidPosition("middle") {
		t.Error(`ValidPosition("middle") = true, want false`)
	}
}
