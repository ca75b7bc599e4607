package frames

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/moonback/photoboot/internal/geometry"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := OpenRegistry(filepath.Join(t.TempDir(), "frames.db"))
	if err != nil {
		t.Fatalf("OpenRegistry() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func newDescriptor(name string, active bool) *Descriptor {
	return &Descriptor{
		Name:     name,
		Filename: name + ".png",
		Position: geometry.Center,
		Size:     100,
		Width:    800,
		Height:   600,
		Active:   active,
	}
}

func activeIDs(t *testing.T, r *Registry) []string {
	t.Helper()
	all, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, d := range all {
		if d.Active {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func TestRegistry_ActivateSwitchesActiveFrame(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	a := newDescriptor("a", true)
	b := newDescriptor("b", false)
	if err := r.Create(ctx, a); err != nil {
		t.Fatalf("Create(a) error = %v", err)
	}
	if err := r.Create(ctx, b); err != nil {
		t.Fatalf("Create(b) error = %v", err)
	}

	if err := r.Activate(ctx, b.ID); err != nil {
		t.Fatalf("Activate(b) error = %v", err)
	}

	gotA, err := r.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	gotB, err := r.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get(b) error = %v", err)
	}
	if gotA.Active {
		t.Error("a.Active = true after activating b, want false")
	}
	if !gotB.Active {
		t.Error("b.Active = false after activating b, want true")
	}

	active, err := r.Active(ctx)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if active == nil || active.ID != b.ID {
		t.Errorf("Active() = %+v, want frame b", active)
	}
}

func TestRegistry_CreateActiveDeactivatesOthers(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	for _, name := range []string{"one", "two", "three"} {
		if err := r.Create(ctx, newDescriptor(name, true)); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		if ids := activeIDs(t, r); len(ids) != 1 {
			t.Fatalf("after creating %s: %d active frames, want 1", name, len(ids))
		}
	}

	active, _ := r.Active(ctx)
	if active == nil || active.Name != "three" {
		t.Errorf("Active() = %+v, want three", active)
	}
}

func TestRegistry_UniqueActiveIndex(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	if err := r.Create(ctx, newDescriptor("a", true)); err != nil {
		t.Fatalf("Create(a) error = %v", err)
	}
	b := newDescriptor("b", false)
	if err := r.Create(ctx, b); err != nil {
		t.Fatalf("Create(b) error = %v", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE frames SET active = 1 WHERE id = ?`, b.ID); err == nil {
		t.Error("raw second activation succeeded, want unique index violation")
	}
}

func TestRegistry_NoActiveFrame(t *testing.T) {
	r := openTestRegistry(t)
	active, err := r.Active(context.Background())
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if active != nil {
		t.Errorf("Active() = %+v, want nil", active)
	}
}

func TestRegistry_NotFound(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	if _, err := r.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := r.Activate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Activate() error = %v, want ErrNotFound", err)
	}
	if _, err := r.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	d := newDescriptor("corner", false)
	if err := r.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	d.Position = geometry.Custom
	d.X, d.Y = 12.5, 80
	d.Size = 40
	if err := r.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := r.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Position != geometry.Custom || got.X != 12.5 || got.Y != 80 || got.Size != 40 {
		t.Errorf("Get() after Update = %+v", got)
	}

	deleted, err := r.Delete(ctx, d.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.Filename != "corner.png" {
		t.Errorf("Delete() filename = %q, want corner.png", deleted.Filename)
	}
	all, _ := r.List(ctx)
	if len(all) != 0 {
		t.Errorf("List() after Delete = %d frames, want 0", len(all))
	}
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Descriptor)
		wantErr bool
	}{
		{"valid", func(d *Descriptor) {}, false},
		{"missing name", func(d *Descriptor) { d.Name = "" }, true},
		{"bad position", func(d *Descriptor) { d.Position = "middle" }, true},
		{"size too small", func(d *Descriptor) { d.Size = 0 }, true},
		{"size too big", func(d *Descriptor) { d.Size = 201 }, true},
		{"custom in range", func(d *Descriptor) { d.Position = geometry.Custom; d.X = 100; d.Y = 0 }, false},
		{"custom out of range", func(d *Descriptor) { d.Position = geometry.Custom; d.X = 101 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDescriptor("f", false)
			tt.mutate(d)
			if err := d.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestLibrary_AddAndRemove(t *testing.T) {
	ctx := context.Background()
	lib := &Library{Registry: openTestRegistry(t), AssetsDir: filepath.Join(t.TempDir(), "frames")}

	d, err := lib.Add(ctx, NewFrame{
		Name:       "party",
		Descriptor: Descriptor{Position: geometry.Center, Active: true},
		CreatedBy:  "admin",
	}, pngBytes(t, 64, 48, color.NRGBA{255, 0, 0, 128}))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if d.Width != 64 || d.Height != 48 || d.Size != 100 {
		t.Errorf("Add() = %+v, want 64x48 size 100", d)
	}
	path := filepath.Join(lib.AssetsDir, d.Filename)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("asset not written: %v", err)
	}

	if err := lib.Remove(ctx, d.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("asset still present after Remove(): %v", err)
	}
}

func TestLibrary_AddRejectsNonPNG(t *testing.T) {
	lib := &Library{Registry: openTestRegistry(t), AssetsDir: t.TempDir()}
	_, err := lib.Add(context.Background(), NewFrame{Name: "jpeg"}, []byte("\xff\xd8\xff\xe0 not png"))
	if err == nil {
		t.Fatal("Add(non-PNG) error = nil, want error")
	}
}
