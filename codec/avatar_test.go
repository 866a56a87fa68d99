package codec

import (
	"encoding/base64"
	"testing"
)

func buildAvatarBlob(t *testing.T, markers []byte, layers []AvatarLayer, baseColor int32) string {
	t.Helper()

	w := NewWriter()
	for i := 0; i < 7; i++ {
		w.Byte(0)
	}
	w.Byte(byte(len(layers)*2 + 1))
	w.buf = append(w.buf, markers...)
	w.Byte(1)
	for _, l := range layers {
		w.Byte(10)
		w.Byte(0)
		w.Int16(0)
		w.Int16(l.ID)
		w.Float32(l.Scale)
		w.Float32(l.Angle)
		w.Float32(l.X)
		w.Float32(l.Y)
		w.Bool(l.FlipX)
		w.Bool(l.FlipY)
		w.Int32(l.Color)
	}
	w.Int32(baseColor)
	return base64.StdEncoding.EncodeToString(w.Bytes())
}

func TestDecodeAvatarEmpty(t *testing.T) {
	t.Parallel()

	avatar, err := DecodeAvatar("")
	if err != nil {
		t.Fatal(err)
	}
	if len(avatar.Layers) != 0 {
		t.Errorf("Layers = %v, want none", avatar.Layers)
	}
	if avatar.BaseColor != DefaultBaseColor {
		t.Errorf("BaseColor = %d, want %d", avatar.BaseColor, DefaultBaseColor)
	}
}

func TestDecodeAvatar(t *testing.T) {
	t.Parallel()

	want := AvatarLayer{
		ID:    14,
		Scale: 0.18,
		Angle: 90,
		X:     -2.5,
		Y:     3.25,
		FlipX: true,
		Color: 16711680,
	}
	encoded := buildAvatarBlob(t, nil, []AvatarLayer{want}, 123456)

	avatar, err := DecodeAvatar(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(avatar.Layers) != 1 {
		t.Fatalf("Layers = %d, want 1", len(avatar.Layers))
	}
	if avatar.Layers[0] != want {
		t.Errorf("layer = %+v, want %+v", avatar.Layers[0], want)
	}
	if avatar.BaseColor != 123456 {
		t.Errorf("BaseColor = %d", avatar.BaseColor)
	}
}

func TestDecodeAvatarMarkerRuns(t *testing.T) {
	t.Parallel()

	// Marker 3 carries one extra byte, marker 5 carries two.
	markers := []byte{3, 0xAA, 5, 0xBB, 0xCC}
	encoded := buildAvatarBlob(t, markers, []AvatarLayer{{ID: 2, Scale: 1}}, 42)

	avatar, err := DecodeAvatar(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(avatar.Layers) != 1 || avatar.Layers[0].ID != 2 {
		t.Fatalf("layers = %+v", avatar.Layers)
	}
	if avatar.BaseColor != 42 {
		t.Errorf("BaseColor = %d", avatar.BaseColor)
	}
}

func TestDecodeAvatarTruncated(t *testing.T) {
	t.Parallel()

	blob := base64.StdEncoding.EncodeToString([]byte{0, 0, 0})
	if _, err := DecodeAvatar(blob); err == nil {
		t.Error("expected error for truncated avatar")
	}
}
