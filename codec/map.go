package codec

import (
	"errors"
	"fmt"
	"math"
)

// maxMapVersion is the newest map format revision this decoder understands.
const maxMapVersion = 61

// absentValue marks a double field the editor left unset.
const absentValue = math.MaxFloat64

// ErrUnsupportedVersion is returned for map documents newer than the
// decoder understands.
var ErrUnsupportedVersion = errors.New("codec: unsupported map format version")

// MapSettings are the world-level toggles of a map document.
type MapSettings struct {
	Respawn      bool    `json:"re"`
	NoClip       bool    `json:"nc"`
	PhysicsQual  int16   `json:"pq"`
	GridDivision float64 `json:"gd"`
	Fluid        bool    `json:"fl"`
}

// MapMeta is the metadata block of a map document.
type MapMeta struct {
	Author     string   `json:"a"`
	Name       string   `json:"n"`
	DBVersion  int32    `json:"dbv"`
	DBID       int32    `json:"dbid"`
	AuthID     int32    `json:"authid"`
	Date       string   `json:"date"`
	RemixID    uint32   `json:"rxid"`
	RemixName  string   `json:"rxn"`
	RemixAuth  string   `json:"rxa"`
	RemixDB    int16    `json:"rxdb"`
	Credits    []string `json:"cr"`
	Published  bool     `json:"pub"`
	Mode       string   `json:"mo"`
	VotesUp    uint32   `json:"vu"`
	VotesDown  uint32   `json:"vd"`
	HasVotes   bool     `json:"-"`
}

// Shape is one of the three collision shape kinds.
type Shape interface {
	shapeKind() string
}

// BoxShape is an axis-aligned rectangle, possibly rotated.
type BoxShape struct {
	Type   string     `json:"type"`
	W      float64    `json:"w"`
	H      float64    `json:"h"`
	Center [2]float64 `json:"c"`
	Angle  float64    `json:"a"`
	Skew   bool       `json:"sk"`
}

// CircleShape is a circle.
type CircleShape struct {
	Type   string     `json:"type"`
	Radius float64    `json:"r"`
	Center [2]float64 `json:"c"`
	Skew   bool       `json:"sk"`
}

// PolygonShape is an arbitrary vertex list.
type PolygonShape struct {
	Type     string       `json:"type"`
	Scale    float64      `json:"s"`
	Angle    float64      `json:"a"`
	Center   [2]float64   `json:"c"`
	Vertices [][2]float64 `json:"v"`
}

func (BoxShape) shapeKind() string     { return "bx" }
func (CircleShape) shapeKind() string  { return "ci" }
func (PolygonShape) shapeKind() string { return "po" }

// Fixture binds a shape to a body with its surface properties. Friction,
// restitution and density are nil when the editor left them unset, and
// FricPlayers is a true tri-state.
type Fixture struct {
	Shape       int16    `json:"sh"`
	Name        string   `json:"n"`
	Friction    *float64 `json:"fr"`
	FricPlayers *bool    `json:"fp"`
	Restitution *float64 `json:"re"`
	Density     *float64 `json:"de"`
	Color       uint32   `json:"f"`
	Death       bool     `json:"d"`
	NoPhysics   bool     `json:"np"`
	NoGrapple   bool     `json:"ng"`
	InnerGrap   bool     `json:"ig"`
}

// BodySurface holds the per-body physics material and collision filter.
type BodySurface struct {
	Type        string  `json:"type"`
	Name        string  `json:"n"`
	Friction    float64 `json:"fric"`
	FricPlayers bool    `json:"fricp"`
	Restitution float64 `json:"re"`
	Density     float64 `json:"de"`
	LinDamp     float64 `json:"ld"`
	AngDamp     float64 `json:"ad"`
	FixedRot    bool    `json:"fr"`
	Bullet      bool    `json:"bu"`
	FilterCat   int16   `json:"f_c"`
	FilterP     bool    `json:"f_p"`
	Filter1     bool    `json:"f_1"`
	Filter2     bool    `json:"f_2"`
	Filter3     bool    `json:"f_3"`
	Filter4     bool    `json:"f_4"`
}

// ConstantForce is the force applied to a body every step.
type ConstantForce struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	World  bool    `json:"w"`
	Torque float64 `json:"ct"`
}

// ForceZone turns a body's fixtures into a field that pushes players.
type ForceZone struct {
	On       bool    `json:"on"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Players  bool    `json:"d"`
	Discs    bool    `json:"p"`
	Arrows   bool    `json:"a"`
	Kind     int16   `json:"t"`
	CenterF  float64 `json:"cf"`
}

// Body is a physics body and the fixtures attached to it.
type Body struct {
	Position [2]float64    `json:"p"`
	Angle    float64       `json:"a"`
	LinVel   [2]float64    `json:"lv"`
	AngVel   float64       `json:"av"`
	Force    ConstantForce `json:"cf"`
	Fixtures []int16       `json:"fx"`
	Zone     ForceZone     `json:"fz"`
	Surface  BodySurface   `json:"s"`
}

// Spawn is a player spawn point with its team eligibility flags.
type Spawn struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	XV       float64 `json:"xv"`
	YV       float64 `json:"yv"`
	Priority int16   `json:"priority"`
	Red      bool    `json:"r"`
	FFA      bool    `json:"f"`
	Blue     bool    `json:"b"`
	Green    bool    `json:"gr"`
	Yellow   bool    `json:"ye"`
	Name     string  `json:"n"`
}

// CapZone is a capture zone.
type CapZone struct {
	Name    string  `json:"n"`
	Seconds float64 `json:"l"`
	Fixture int16   `json:"i"`
	Kind    int16   `json:"ty"`
}

// Joint is one of the five joint kinds.
type Joint interface {
	jointKind() string
}

// JointAnchor carries the body pair and common dynamics every
// non-gear joint ends with.
type JointAnchor struct {
	BodyA     int16   `json:"ba"`
	BodyB     int16   `json:"bb"`
	Collide   bool    `json:"cc"`
	BreakF    float64 `json:"bf"`
	DrawLine  bool    `json:"dl"`
}

// RevoluteJoint pins two bodies around an axis.
type RevoluteJoint struct {
	Type       string     `json:"type"`
	LowerAngle float64    `json:"la"`
	UpperAngle float64    `json:"ua"`
	MotorTurn  float64    `json:"mmt"`
	MotorSpeed float64    `json:"ms"`
	EnableLim  bool       `json:"el"`
	EnableMot  bool       `json:"em"`
	AnchorA    [2]float64 `json:"aa"`
	JointAnchor
}

// DistanceJoint holds two bodies a sprung distance apart.
type DistanceJoint struct {
	Type    string     `json:"type"`
	Hertz   float64    `json:"fh"`
	Damping float64    `json:"dr"`
	AnchorA [2]float64 `json:"aa"`
	AnchorB [2]float64 `json:"ab"`
	JointAnchor
}

// PathJoint constrains a body along a line relative to the world.
type PathJoint struct {
	Type   string  `json:"type"`
	PAX    float64 `json:"pax"`
	PAY    float64 `json:"pay"`
	PA     float64 `json:"pa"`
	PF     float64 `json:"pf"`
	PL     float64 `json:"pl"`
	PU     float64 `json:"pu"`
	PLen   float64 `json:"plen"`
	PMS    float64 `json:"pms"`
	JointAnchor
}

// SpringJoint tethers a body to a world point with a spring.
type SpringJoint struct {
	Type string  `json:"type"`
	SAX  float64 `json:"sax"`
	SAY  float64 `json:"say"`
	SF   float64 `json:"sf"`
	SLen float64 `json:"slen"`
	JointAnchor
}

// GearJoint links the motion of two other joints.
type GearJoint struct {
	Type   string  `json:"type"`
	Name   string  `json:"n"`
	JointA int16   `json:"ja"`
	JointB int16   `json:"jb"`
	Ratio  float64 `json:"r"`
}

func (RevoluteJoint) jointKind() string { return "rv" }
func (DistanceJoint) jointKind() string { return "d" }
func (PathJoint) jointKind() string     { return "lpj" }
func (SpringJoint) jointKind() string   { return "lsj" }
func (GearJoint) jointKind() string     { return "g" }

// MapPhysics holds the physics tables of a map document.
type MapPhysics struct {
	Shapes    []Shape   `json:"shapes"`
	Fixtures  []Fixture `json:"fixtures"`
	Bodies    []Body    `json:"bodies"`
	BodyOrder []int16   `json:"bro"`
	Joints    []Joint   `json:"joints"`
	PPM       int16     `json:"ppm"`
}

// MapDocument is a fully decoded map.
type MapDocument struct {
	Version  int16       `json:"v"`
	Settings MapSettings `json:"s"`
	Physics  MapPhysics  `json:"physics"`
	Spawns   []Spawn     `json:"spawns"`
	CapZones []CapZone   `json:"capZones"`
	Meta     MapMeta     `json:"m"`
}

// defaultMapMeta returns the metadata block with its unset defaults.
func defaultMapMeta() MapMeta {
	return MapMeta{
		Author:    "nob_author",
		Name:      "nob_name",
		DBVersion: 2,
		DBID:      -1,
		AuthID:    -1,
		RemixDB:   1,
		Credits:   []string{},
	}
}

// mapDecoder wraps a Reader with a sticky error so the long field
// sequences read cleanly. After the first failure every read returns the
// zero value and the error is surfaced once at the end.
type mapDecoder struct {
	r   *Reader
	err error
}

func (d *mapDecoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, err := d.r.Bool()
	d.err = err
	return v
}

func (d *mapDecoder) short() int16 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.Int16()
	d.err = err
	return v
}

func (d *mapDecoder) int() int32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.Int32()
	d.err = err
	return v
}

func (d *mapDecoder) uint() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.Uint32()
	d.err = err
	return v
}

func (d *mapDecoder) float() float32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.Float32()
	d.err = err
	return v
}

func (d *mapDecoder) double() float64 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.Float64()
	d.err = err
	return v
}

// optDouble reads a double and maps the editor's unset sentinel to nil.
func (d *mapDecoder) optDouble() *float64 {
	v := d.double()
	if d.err != nil || v == absentValue {
		return nil
	}
	return &v
}

func (d *mapDecoder) utf() string {
	if d.err != nil {
		return ""
	}
	v, err := d.r.UTF()
	d.err = err
	return v
}

func (d *mapDecoder) pair() [2]float64 {
	return [2]float64{d.double(), d.double()}
}

// readMeta decodes the shared header and metadata prefix of both the
// metadata-only and full document forms. Returns the format version.
func (d *mapDecoder) readMeta(meta *MapMeta, settings *MapSettings) int16 {
	version := d.short()
	if d.err == nil && version > maxMapVersion {
		d.err = fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		return version
	}

	settings.PhysicsQual = 1
	settings.GridDivision = 25.0
	settings.Respawn = d.bool()
	settings.NoClip = d.bool()
	if version >= 3 {
		settings.PhysicsQual = d.short()
	}
	if version >= 4 && version <= 12 {
		settings.GridDivision = float64(d.short())
	} else if version >= 13 {
		settings.GridDivision = float64(d.float())
	}
	if version >= 9 {
		settings.Fluid = d.bool()
	}

	meta.RemixName = d.utf()
	meta.RemixAuth = d.utf()
	meta.RemixID = d.uint()
	meta.RemixDB = d.short()
	meta.Name = d.utf()
	meta.Author = d.utf()

	if version >= 10 {
		meta.VotesUp = d.uint()
		meta.VotesDown = d.uint()
		meta.HasVotes = true
	}
	if version >= 4 {
		n := d.short()
		for i := int16(0); i < n && d.err == nil; i++ {
			meta.Credits = append(meta.Credits, d.utf())
		}
	}
	if version >= 5 {
		meta.Mode = d.utf()
		meta.DBID = d.int()
	}
	if version >= 7 {
		meta.Published = d.bool()
	}
	if version >= 8 {
		meta.DBVersion = d.int()
	}
	return version
}

// DecodeMapMetadata decodes only the metadata block of a map blob,
// without walking the physics tables.
func DecodeMapMetadata(encoded string) (MapMeta, error) {
	raw, err := DecodeBlob(encoded)
	if err != nil {
		return MapMeta{}, err
	}
	d := &mapDecoder{r: NewReader(raw)}
	meta := defaultMapMeta()
	var settings MapSettings
	d.readMeta(&meta, &settings)
	if d.err != nil {
		return MapMeta{}, fmt.Errorf("decode map metadata: %w", d.err)
	}
	return meta, nil
}

// DecodeMap decodes a full map blob into its document form.
func DecodeMap(encoded string) (*MapDocument, error) {
	raw, err := DecodeBlob(encoded)
	if err != nil {
		return nil, err
	}

	d := &mapDecoder{r: NewReader(raw)}
	doc := &MapDocument{Meta: defaultMapMeta()}
	doc.Physics.Shapes = []Shape{}
	doc.Physics.Fixtures = []Fixture{}
	doc.Physics.Bodies = []Body{}
	doc.Physics.BodyOrder = []int16{}
	doc.Physics.Joints = []Joint{}
	doc.Spawns = []Spawn{}
	doc.CapZones = []CapZone{}

	doc.Version = d.readMeta(&doc.Meta, &doc.Settings)
	if d.err != nil {
		return nil, fmt.Errorf("decode map: %w", d.err)
	}
	v := doc.Version

	doc.Physics.PPM = d.short()
	broLen := d.short()
	for i := int16(0); i < broLen && d.err == nil; i++ {
		doc.Physics.BodyOrder = append(doc.Physics.BodyOrder, d.short())
	}

	shapeLen := d.short()
	for i := int16(0); i < shapeLen && d.err == nil; i++ {
		switch kind := d.short(); kind {
		case 1:
			doc.Physics.Shapes = append(doc.Physics.Shapes, BoxShape{
				Type:   "bx",
				W:      d.double(),
				H:      d.double(),
				Center: d.pair(),
				Angle:  d.double(),
				Skew:   d.bool(),
			})
		case 2:
			doc.Physics.Shapes = append(doc.Physics.Shapes, CircleShape{
				Type:   "ci",
				Radius: d.double(),
				Center: d.pair(),
				Skew:   d.bool(),
			})
		case 3:
			shape := PolygonShape{
				Type:   "po",
				Scale:  d.double(),
				Angle:  d.double(),
				Center: d.pair(),
			}
			vcount := d.short()
			for j := int16(0); j < vcount && d.err == nil; j++ {
				shape.Vertices = append(shape.Vertices, d.pair())
			}
			doc.Physics.Shapes = append(doc.Physics.Shapes, shape)
		}
	}

	fixLen := d.short()
	for i := int16(0); i < fixLen && d.err == nil; i++ {
		fix := Fixture{
			Shape:    d.short(),
			Name:     d.utf(),
			Friction: d.optDouble(),
		}
		switch d.short() {
		case 1:
			fp := false
			fix.FricPlayers = &fp
		case 2:
			fp := true
			fix.FricPlayers = &fp
		}
		fix.Restitution = d.optDouble()
		fix.Density = d.optDouble()
		fix.Color = d.uint()
		fix.Death = d.bool()
		fix.NoPhysics = d.bool()
		if v >= 11 {
			fix.NoGrapple = d.bool()
		}
		if v >= 12 {
			fix.InnerGrap = d.bool()
		}
		doc.Physics.Fixtures = append(doc.Physics.Fixtures, fix)
	}

	bodyLen := d.short()
	for i := int16(0); i < bodyLen && d.err == nil; i++ {
		body := Body{
			Zone:    ForceZone{Players: true, Discs: true, Arrows: true},
			Surface: BodySurface{FilterCat: 1, FilterP: true, Filter1: true, Filter2: true, Filter3: true, Filter4: true},
		}
		body.Surface.Type = d.utf()
		body.Surface.Name = d.utf()
		body.Position = d.pair()
		body.Angle = d.double()
		body.Surface.Friction = d.double()
		body.Surface.FricPlayers = d.bool()
		body.Surface.Restitution = d.double()
		body.Surface.Density = d.double()
		body.LinVel = d.pair()
		body.AngVel = d.double()
		body.Surface.LinDamp = d.double()
		body.Surface.AngDamp = d.double()
		body.Surface.FixedRot = d.bool()
		body.Surface.Bullet = d.bool()
		body.Force.X = d.double()
		body.Force.Y = d.double()
		body.Force.Torque = d.double()
		body.Force.World = d.bool()
		body.Surface.FilterCat = d.short()
		body.Surface.Filter1 = d.bool()
		body.Surface.Filter2 = d.bool()
		body.Surface.Filter3 = d.bool()
		body.Surface.Filter4 = d.bool()
		if v >= 2 {
			body.Surface.FilterP = d.bool()
		}
		if v >= 14 {
			body.Zone.On = d.bool()
			if d.err == nil && body.Zone.On {
				body.Zone.X = d.double()
				body.Zone.Y = d.double()
				body.Zone.Players = d.bool()
				body.Zone.Discs = d.bool()
				body.Zone.Arrows = d.bool()
				if v >= 15 {
					body.Zone.Kind = d.short()
					body.Zone.CenterF = d.double()
				}
			}
		}
		fxLen := d.short()
		for j := int16(0); j < fxLen && d.err == nil; j++ {
			body.Fixtures = append(body.Fixtures, d.short())
		}
		doc.Physics.Bodies = append(doc.Physics.Bodies, body)
	}

	spawnLen := d.short()
	for i := int16(0); i < spawnLen && d.err == nil; i++ {
		doc.Spawns = append(doc.Spawns, Spawn{
			X:        d.double(),
			Y:        d.double(),
			XV:       d.double(),
			YV:       d.double(),
			Priority: d.short(),
			Red:      d.bool(),
			FFA:      d.bool(),
			Blue:     d.bool(),
			Green:    d.bool(),
			Yellow:   d.bool(),
			Name:     d.utf(),
		})
	}

	capLen := d.short()
	for i := int16(0); i < capLen && d.err == nil; i++ {
		cz := CapZone{
			Name:    d.utf(),
			Seconds: d.double(),
			Fixture: d.short(),
		}
		if v >= 6 {
			cz.Kind = d.short()
		}
		doc.CapZones = append(doc.CapZones, cz)
	}

	jointLen := d.short()
	for i := int16(0); i < jointLen && d.err == nil; i++ {
		kind := d.short()
		anchor := func() JointAnchor {
			return JointAnchor{
				BodyA:    d.short(),
				BodyB:    d.short(),
				Collide:  d.bool(),
				BreakF:   d.double(),
				DrawLine: d.bool(),
			}
		}
		switch kind {
		case 1:
			j := RevoluteJoint{
				Type:       "rv",
				LowerAngle: d.double(),
				UpperAngle: d.double(),
				MotorTurn:  d.double(),
				MotorSpeed: d.double(),
				EnableLim:  d.bool(),
				EnableMot:  d.bool(),
				AnchorA:    d.pair(),
			}
			j.JointAnchor = anchor()
			doc.Physics.Joints = append(doc.Physics.Joints, j)
		case 2:
			j := DistanceJoint{
				Type:    "d",
				Hertz:   d.double(),
				Damping: d.double(),
				AnchorA: d.pair(),
				AnchorB: d.pair(),
			}
			j.JointAnchor = anchor()
			doc.Physics.Joints = append(doc.Physics.Joints, j)
		case 3:
			j := PathJoint{
				Type: "lpj",
				PAX:  d.double(),
				PAY:  d.double(),
				PA:   d.double(),
				PF:   d.double(),
				PL:   d.double(),
				PU:   d.double(),
				PLen: d.double(),
				PMS:  d.double(),
			}
			j.JointAnchor = anchor()
			doc.Physics.Joints = append(doc.Physics.Joints, j)
		case 4:
			j := SpringJoint{
				Type: "lsj",
				SAX:  d.double(),
				SAY:  d.double(),
				SF:   d.double(),
				SLen: d.double(),
			}
			j.JointAnchor = anchor()
			doc.Physics.Joints = append(doc.Physics.Joints, j)
		case 5:
			doc.Physics.Joints = append(doc.Physics.Joints, GearJoint{
				Type:   "g",
				Name:   d.utf(),
				JointA: d.short(),
				JointB: d.short(),
				Ratio:  d.double(),
			})
		default:
			// Unknown joint kinds still carry the common trailer.
			_ = anchor()
		}
	}

	if d.err != nil {
		return nil, fmt.Errorf("decode map: %w", d.err)
	}
	return doc, nil
}
