package core

import (
	"math/rand"
	"testing"
)

func TestClamp(t *testing.T) {
	canvas := Size{Width: 800, Height: 450}
	size := Size{Width: 200, Height: 50}

	testCases := []struct {
		name string
		pos  Position
		want Position
	}{
		{"inside", Position{X: 50, Y: 50}, Position{X: 50, Y: 50}},
		{"negative", Position{X: -10, Y: -0.5}, Position{X: 0, Y: 0}},
		{"past far edge", Position{X: 1050, Y: 1050}, Position{X: 600, Y: 400}},
		{"exactly at edge", Position{X: 600, Y: 400}, Position{X: 600, Y: 400}},
		{"fractional", Position{X: 12.25, Y: 399.75}, Position{X: 12.25, Y: 399.75}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Clamp(tc.pos, size, canvas)
			if got != tc.want {
				t.Errorf("Clamp(%v) = %v, want %v", tc.pos, got, tc.want)
			}
		})
	}
}

func TestClamp_OversizedAxisPinsToZero(t *testing.T) {
	canvas := Size{Width: 800, Height: 450}
	size := Size{Width: 1000, Height: 50}

	got := Clamp(Position{X: 300, Y: 300}, size, canvas)
	want := Position{X: 0, Y: 300}
	if got != want {
		t.Errorf("Clamp() = %v, want %v", got, want)
	}
}

func TestClamp_NeverLeavesCanvas(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		canvas := Size{Width: 1 + rng.Float64()*2000, Height: 1 + rng.Float64()*2000}
		size := Size{Width: 1 + rng.Float64()*(canvas.Width-1), Height: 1 + rng.Float64()*(canvas.Height-1)}
		pos := Position{X: rng.Float64()*6000 - 3000, Y: rng.Float64()*6000 - 3000}

		got := Clamp(pos, size, canvas)
		if got.X < 0 || got.Y < 0 {
			t.Fatalf("Clamp(%v, %v, %v) = %v has a negative coordinate", pos, size, canvas, got)
		}
		if got.X+size.Width > canvas.Width || got.Y+size.Height > canvas.Height {
			t.Fatalf("Clamp(%v, %v, %v) = %v overflows the canvas", pos, size, canvas, got)
		}
	}
}

func TestClamp_RoundedBoundStaysInside(t *testing.T) {
	canvas := Size{Width: 1711.62, Height: 1422.49}
	size := Size{Width: 468.85, Height: 580.45}

	got := Clamp(Position{X: 2458.57, Y: 2666.38}, size, canvas)
	if got.X+size.Width > canvas.Width || got.Y+size.Height > canvas.Height {
		t.Errorf("Clamp() = %v overflows %v", got, canvas)
	}
}

func TestClampSize(t *testing.T) {
	canvas := Size{Width: 800, Height: 450}
	min := Size{Width: 20, Height: 20}

	testCases := []struct {
		name string
		pos  Position
		size Size
		want Size
	}{
		{"fits", Position{X: 100, Y: 100}, Size{Width: 300, Height: 200}, Size{Width: 300, Height: 200}},
		{"too wide", Position{X: 700, Y: 0}, Size{Width: 300, Height: 50}, Size{Width: 100, Height: 50}},
		{"below minimum", Position{X: 0, Y: 0}, Size{Width: 5, Height: -40}, Size{Width: 20, Height: 20}},
		{"anchor near edge gets the remaining room", Position{X: 795, Y: 445}, Size{Width: 50, Height: 50}, Size{Width: 5, Height: 5}},
		{"anchor near edge ignores minimum", Position{X: 790, Y: 440}, Size{Width: 1, Height: 1}, Size{Width: 10, Height: 10}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClampSize(tc.pos, tc.size, canvas, min)
			if got != tc.want {
				t.Errorf("ClampSize() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClampSize_NeverLeavesCanvas(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	min := Size{Width: 20, Height: 20}
	for i := 0; i < 1000; i++ {
		canvas := Size{Width: 1 + rng.Float64()*2000, Height: 1 + rng.Float64()*2000}
		pos := Position{X: rng.Float64() * (canvas.Width - 0.5), Y: rng.Float64() * (canvas.Height - 0.5)}
		size := Size{Width: rng.Float64()*3000 - 500, Height: rng.Float64()*3000 - 500}

		got := ClampSize(pos, size, canvas, min)
		if pos.X+got.Width > canvas.Width || pos.Y+got.Height > canvas.Height {
			t.Fatalf("ClampSize(%v, %v, %v) = %v overflows the canvas", pos, size, canvas, got)
		}
	}
}

func TestFit(t *testing.T) {
	canvas := Size{Width: 800, Height: 450}

	testCases := []struct {
		name string
		in   Rect
		want Rect
	}{
		{"inside", Rect{Position{X: 10, Y: 10}, Size{Width: 100, Height: 50}}, Rect{Position{X: 10, Y: 10}, Size{Width: 100, Height: 50}}},
		{"far away", Rect{Position{X: 5000, Y: 5000}, Size{Width: 100, Height: 50}}, Rect{Position{X: 700, Y: 400}, Size{Width: 100, Height: 50}}},
		{"larger than canvas", Rect{Position{X: 300, Y: 20}, Size{Width: 1000, Height: 50}}, Rect{Position{X: 0, Y: 20}, Size{Width: 800, Height: 50}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fit(tc.in, canvas); got != tc.want {
				t.Errorf("Fit(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{Position: Position{X: 10, Y: 10}, Size: Size{Width: 20, Height: 20}}

	if !r.Contains(Position{X: 10, Y: 10}) {
		t.Error("Contains() should include the top-left corner")
	}
	if !r.Contains(Position{X: 30, Y: 30}) {
		t.Error("Contains() should include the bottom-right corner")
	}
	if r.Contains(Position{X: 31, Y: 15}) {
		t.Error("Contains() should exclude points to the right")
	}
}
