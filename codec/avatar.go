package codec

import (
	"encoding/base64"
	"fmt"
	"net/url"
)

// DefaultBaseColor is the avatar base color used when no avatar data is set.
const DefaultBaseColor = 4492031

// AvatarLayer is one drawable layer of a player avatar.
type AvatarLayer struct {
	ID    int16   `json:"id"`
	Scale float32 `json:"scale"`
	Angle float32 `json:"angle"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	FlipX bool    `json:"flipX"`
	FlipY bool    `json:"flipY"`
	Color int32   `json:"color"`
}

// Avatar is a decoded player avatar.
type Avatar struct {
	Layers    []AvatarLayer `json:"layers"`
	BaseColor int32         `json:"bc"`
}

// DecodeAvatar decodes the percent-escaped base64 avatar blob the room
// protocol carries. The empty string yields the default avatar.
func DecodeAvatar(encoded string) (Avatar, error) {
	if encoded == "" {
		return Avatar{Layers: []AvatarLayer{}, BaseColor: DefaultBaseColor}, nil
	}

	unescaped, err := url.PathUnescape(encoded)
	if err != nil {
		return Avatar{}, fmt.Errorf("unescape avatar: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return Avatar{}, fmt.Errorf("decode avatar base64: %w", err)
	}

	r := NewReader(raw)
	if err := r.Skip(7); err != nil {
		return Avatar{}, fmt.Errorf("avatar header: %w", err)
	}

	countByte, err := r.Byte()
	if err != nil {
		return Avatar{}, fmt.Errorf("avatar layer count: %w", err)
	}
	layerCount := (int(countByte) - 1) / 2

	// The header carries a variable run of framing markers before the
	// layer records start.
	for {
		marker, err := r.Byte()
		if err != nil {
			return Avatar{}, fmt.Errorf("avatar marker: %w", err)
		}
		if marker == 1 {
			break
		}
		switch marker {
		case 3:
			if err := r.Skip(1); err != nil {
				return Avatar{}, fmt.Errorf("avatar marker: %w", err)
			}
		case 5:
			if err := r.Skip(2); err != nil {
				return Avatar{}, fmt.Errorf("avatar marker: %w", err)
			}
		}
	}

	avatar := Avatar{Layers: []AvatarLayer{}}
	for i := 0; i < layerCount; i++ {
		layer, ok, err := decodeAvatarLayer(r)
		if err != nil {
			return Avatar{}, fmt.Errorf("avatar layer %d: %w", i, err)
		}
		if ok {
			avatar.Layers = append(avatar.Layers, layer)
		}
	}

	bc, err := r.Int32()
	if err != nil {
		return Avatar{}, fmt.Errorf("avatar base color: %w", err)
	}
	avatar.BaseColor = bc
	return avatar, nil
}

func decodeAvatarLayer(r *Reader) (AvatarLayer, bool, error) {
	tag, err := r.Byte()
	if err != nil {
		return AvatarLayer{}, false, err
	}
	if tag != 10 {
		return AvatarLayer{}, false, nil
	}

	sub, err := r.Byte()
	if err != nil {
		return AvatarLayer{}, false, err
	}
	if sub == 7 {
		if err := r.Skip(3); err != nil {
			return AvatarLayer{}, false, err
		}
	}
	if err := r.Skip(2); err != nil {
		return AvatarLayer{}, false, err
	}

	var layer AvatarLayer
	if layer.ID, err = r.Int16(); err != nil {
		return AvatarLayer{}, false, err
	}
	if layer.Scale, err = r.Float32(); err != nil {
		return AvatarLayer{}, false, err
	}
	if layer.Angle, err = r.Float32(); err != nil {
		return AvatarLayer{}, false, err
	}
	if layer.X, err = r.Float32(); err != nil {
		return AvatarLayer{}, false, err
	}
	if layer.Y, err = r.Float32(); err != nil {
		return AvatarLayer{}, false, err
	}
	if layer.FlipX, err = r.Bool(); err != nil {
		return AvatarLayer{}, false, err
	}
	if layer.FlipY, err = r.Bool(); err != nil {
		return AvatarLayer{}, false, err
	}
	if layer.Color, err = r.Int32(); err != nil {
		return AvatarLayer{}, false, err
	}
	return layer, true, nil
}
