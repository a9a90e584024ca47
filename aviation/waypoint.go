// aviation/waypoint.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"log/slog"

	"github.com/mmp/fms/math"
	"github.com/mmp/fms/props"
)

// Stored type tags of the waypoint kinds.
const (
	WaypointTypeBasic         = "basic"
	WaypointTypeNavaid        = "navaid"
	WaypointTypeOffsetNavaid  = "offset-navaid"
	WaypointTypeRunway        = "runway"
	WaypointTypeHold          = "hold"
	WaypointTypeVia           = "via"
	WaypointTypeDiscontinuity = "discontinuity"
)

// Waypoint is a point that a flight plan leg targets. The set of kinds is
// closed: basic, navaid, offset navaid, runway, hold, via and
// discontinuity.
type Waypoint interface {
	Ident() string
	// Position is invalid for waypoints without a geographic position.
	Position() math.Point2LL
	Type() string
	// Source returns the navigation database item the waypoint refers to,
	// if any.
	Source() Positioned
	ICAODescription() string

	Flags() WaypointFlags
	HasFlag(f WaypointFlags) bool
	SetFlag(f WaypointFlags, on bool)

	AltitudeRestriction() RouteRestriction
	AltitudeFt() float32
	SetAltitude(ft float32, r RouteRestriction)
	SpeedRestriction() RouteRestriction
	// Speed returns the stored speed; Mach values are negative. Use
	// SpeedKnots and SpeedMach for the decoded values.
	Speed() float32
	SpeedKnots() float32
	SpeedMach() float32
	// SetSpeed takes knots or, for Mach restrictions, a Mach number.
	SetSpeed(v float32, r RouteRestriction)

	Owner() Owner
	SetOwner(o Owner)

	// Matches reports whether the waypoint is within 100m of p.
	Matches(p math.Point2LL) bool

	WriteProperties(n *props.Node)
	Clone() Waypoint
	LogValue() slog.Value

	base() *waypointBase
}

type waypointBase struct {
	flags         WaypointFlags
	altRestrict   RouteRestriction
	altitudeFt    float32
	speedRestrict RouteRestriction
	speed         float32
	owner         Owner
}

func (w *waypointBase) base() *waypointBase                   { return w }
func (w *waypointBase) Flags() WaypointFlags                  { return w.flags }
func (w *waypointBase) HasFlag(f WaypointFlags) bool          { return w.flags&f != 0 }
func (w *waypointBase) AltitudeRestriction() RouteRestriction { return w.altRestrict }
func (w *waypointBase) AltitudeFt() float32                   { return w.altitudeFt }
func (w *waypointBase) SpeedRestriction() RouteRestriction    { return w.speedRestrict }
func (w *waypointBase) Speed() float32                        { return w.speed }
func (w *waypointBase) SpeedKnots() float32                   { return speedKnots(w.speed, w.speedRestrict) }
func (w *waypointBase) SpeedMach() float32                    { return speedMach(w.speed, w.speedRestrict) }
func (w *waypointBase) Owner() Owner                          { return w.owner }
func (w *waypointBase) SetOwner(o Owner)                      { w.owner = o }

func (w *waypointBase) SetFlag(f WaypointFlags, on bool) {
	if on {
		w.flags |= f
	} else {
		w.flags &^= f
	}
}

func (w *waypointBase) SetAltitude(ft float32, r RouteRestriction) {
	w.altitudeFt, w.altRestrict = ft, r
}

func (w *waypointBase) SetSpeed(v float32, r RouteRestriction) {
	w.speed, w.speedRestrict = encodeSpeed(v, r), r
}

func (w *waypointBase) writeBase(n *props.Node, typ string) {
	n.SetString("type", typ)
	for _, fn := range waypointFlagNames {
		if w.flags&fn.flag != 0 {
			n.SetBool(fn.name, true)
		}
	}
	WriteRestrictions(n, w.altitudeFt, w.altRestrict, w.speed, w.speedRestrict)
}

func (w *waypointBase) readBase(n *props.Node) {
	for _, fn := range waypointFlagNames {
		if n.Bool(fn.name, false) {
			w.flags |= fn.flag
		}
	}
	if r := ParseRouteRestriction(n.String("alt-restrict", "")); r != RestrictNone {
		w.SetAltitude(float32(n.Float("altitude-ft", 0)), r)
	}
	if r := ParseRouteRestriction(n.String("speed-restrict", "")); r != RestrictNone {
		w.SetSpeed(float32(n.Float("speed", 0)), r)
	}
}

func logValue(w Waypoint) slog.Value {
	attrs := []slog.Attr{
		slog.String("ident", w.Ident()),
		slog.String("type", w.Type()),
	}
	if p := w.Position(); p.IsValid() {
		attrs = append(attrs, slog.String("position", p.DMSString()))
	}
	if f := w.Flags(); f != 0 {
		attrs = append(attrs, slog.String("flags", f.String()))
	}
	return slog.GroupValue(attrs...)
}

func matches(w Waypoint, p math.Point2LL) bool {
	wp := w.Position()
	return wp.IsValid() && p.IsValid() && math.MetersDistance2LL(wp, p) < 100
}

///////////////////////////////////////////////////////////////////////////
// BasicWaypoint

// BasicWaypoint is a bare geographic position with an identifier.
type BasicWaypoint struct {
	waypointBase
	ident string
	pos   math.Point2LL
}

func NewBasicWaypoint(pos math.Point2LL, ident string, owner Owner) *BasicWaypoint {
	return &BasicWaypoint{waypointBase: waypointBase{owner: owner}, ident: ident, pos: pos}
}

func (w *BasicWaypoint) Ident() string                { return w.ident }
func (w *BasicWaypoint) Position() math.Point2LL      { return w.pos }
func (w *BasicWaypoint) Type() string                 { return WaypointTypeBasic }
func (w *BasicWaypoint) Source() Positioned           { return nil }
func (w *BasicWaypoint) ICAODescription() string      { return w.pos.ICAOString() }
func (w *BasicWaypoint) Matches(p math.Point2LL) bool { return matches(w, p) }
func (w *BasicWaypoint) LogValue() slog.Value         { return logValue(w) }

func (w *BasicWaypoint) Clone() Waypoint {
	c := *w
	return &c
}

func (w *BasicWaypoint) WriteProperties(n *props.Node) {
	w.writeBase(n, WaypointTypeBasic)
	w.writeFields(n)
}

func (w *BasicWaypoint) writeFields(n *props.Node) {
	n.SetFloat32("lon", w.pos.Longitude())
	n.SetFloat32("lat", w.pos.Latitude())
	n.SetString("ident", w.ident)
}

func (w *BasicWaypoint) readFields(n *props.Node) error {
	if !n.HasChild("lon") || !n.HasChild("lat") {
		return fmt.Errorf("basic waypoint: %w", ErrMissingPosition)
	}
	w.pos = math.Point2LL{float32(n.Float("lon", 0)), float32(n.Float("lat", 0))}
	w.ident = n.String("ident", "")
	return nil
}

///////////////////////////////////////////////////////////////////////////
// NavaidWaypoint

// NavaidWaypoint refers to an item in the navigation database: a navaid,
// fix or airport.
type NavaidWaypoint struct {
	waypointBase
	navaid Positioned
}

func NewNavaidWaypoint(p Positioned, owner Owner) *NavaidWaypoint {
	return &NavaidWaypoint{waypointBase: waypointBase{owner: owner}, navaid: p}
}

func (w *NavaidWaypoint) Ident() string                { return w.navaid.Ident() }
func (w *NavaidWaypoint) Position() math.Point2LL      { return w.navaid.Position() }
func (w *NavaidWaypoint) Type() string                 { return WaypointTypeNavaid }
func (w *NavaidWaypoint) Source() Positioned           { return w.navaid }
func (w *NavaidWaypoint) ICAODescription() string      { return w.navaid.Ident() }
func (w *NavaidWaypoint) Matches(p math.Point2LL) bool { return matches(w, p) }
func (w *NavaidWaypoint) LogValue() slog.Value         { return logValue(w) }

func (w *NavaidWaypoint) Clone() Waypoint {
	c := *w
	return &c
}

func (w *NavaidWaypoint) WriteProperties(n *props.Node) {
	w.writeBase(n, WaypointTypeNavaid)
	w.writeFields(n)
}

func (w *NavaidWaypoint) writeFields(n *props.Node) {
	n.SetString("ident", w.navaid.Ident())
	// lon/lat disambiguate between navaids that share an ident
	n.SetFloat32("lon", w.navaid.Position().Longitude())
	n.SetFloat32("lat", w.navaid.Position().Latitude())
}

// maxNavaidMismatchMeters is how far a stored navaid may be from the
// database item with the same ident before the record is treated as a
// bare position.
const maxNavaidMismatchMeters = 4000

func (w *NavaidWaypoint) readFields(db NavDB, n *props.Node) error {
	if !n.HasValue("ident") {
		return fmt.Errorf("navaid waypoint: %w", ErrMissingIdent)
	}
	ident := n.String("ident", "")
	p := math.InvalidPoint2LL()
	if n.HasChild("lon") {
		p = math.Point2LL{float32(n.Float("lon", 0)), float32(n.Float("lat", 0))}
	}

	nav := db.FindClosestWithIdent(ident, p)
	if nav == nil {
		return fmt.Errorf("%s: %w", ident, ErrUnknownNavaid)
	}
	if p.IsValid() && math.MetersDistance2LL(nav.Position(), p) > maxNavaidMismatchMeters {
		return fmt.Errorf("%s: %w", ident, ErrNavaidTooFar)
	}
	w.navaid = nav
	return nil
}

///////////////////////////////////////////////////////////////////////////
// OffsetNavaidWaypoint

// OffsetNavaidWaypoint is a point at a true radial and distance from a
// navaid.
type OffsetNavaidWaypoint struct {
	NavaidWaypoint
	radial     float32
	distanceNM float32
	pos        math.Point2LL
}

func NewOffsetNavaidWaypoint(p Positioned, owner Owner, radial, distanceNM float32) *OffsetNavaidWaypoint {
	w := &OffsetNavaidWaypoint{
		NavaidWaypoint: NavaidWaypoint{waypointBase: waypointBase{owner: owner}, navaid: p},
		radial:         radial,
		distanceNM:     distanceNM,
	}
	w.init()
	return w
}

func (w *OffsetNavaidWaypoint) init() {
	w.pos = math.Offset2LL(w.navaid.Position(), w.radial, w.distanceNM)
}

// Ident follows the ICAO form: navaid ident, three digit radial, three
// digit distance.
func (w *OffsetNavaidWaypoint) Ident() string {
	return fmt.Sprintf("%s%03d%03d", w.navaid.Ident(), int(math.Round(w.radial))%360,
		int(math.Round(w.distanceNM)))
}

func (w *OffsetNavaidWaypoint) Position() math.Point2LL      { return w.pos }
func (w *OffsetNavaidWaypoint) Type() string                 { return WaypointTypeOffsetNavaid }
func (w *OffsetNavaidWaypoint) ICAODescription() string      { return w.Ident() }
func (w *OffsetNavaidWaypoint) Matches(p math.Point2LL) bool { return matches(w, p) }
func (w *OffsetNavaidWaypoint) LogValue() slog.Value         { return logValue(w) }
func (w *OffsetNavaidWaypoint) Radial() float32              { return w.radial }
func (w *OffsetNavaidWaypoint) DistanceNM() float32          { return w.distanceNM }

func (w *OffsetNavaidWaypoint) Clone() Waypoint {
	c := *w
	return &c
}

func (w *OffsetNavaidWaypoint) WriteProperties(n *props.Node) {
	w.writeBase(n, WaypointTypeOffsetNavaid)
	w.NavaidWaypoint.writeFields(n)
	n.SetFloat32("radial-deg", w.radial)
	n.SetFloat32("distance-nm", w.distanceNM)
}

func (w *OffsetNavaidWaypoint) readFields(db NavDB, n *props.Node) error {
	if !n.HasChild("radial-deg") || !n.HasChild("distance-nm") {
		return fmt.Errorf("offset navaid waypoint: %w", ErrMissingOffset)
	}
	if err := w.NavaidWaypoint.readFields(db, n); err != nil {
		return err
	}
	w.radial = float32(n.Float("radial-deg", 0))
	w.distanceNM = float32(n.Float("distance-nm", 0))
	w.init()
	return nil
}

///////////////////////////////////////////////////////////////////////////
// RunwayWaypoint

type RunwayWaypoint struct {
	waypointBase
	runway *Runway
}

func NewRunwayWaypoint(rwy *Runway, owner Owner) *RunwayWaypoint {
	return &RunwayWaypoint{waypointBase: waypointBase{owner: owner}, runway: rwy}
}

func (w *RunwayWaypoint) Ident() string {
	if ap := w.runway.Airport(); ap != nil {
		return ap.Id + "-" + w.runway.Id
	}
	return w.runway.Id
}

func (w *RunwayWaypoint) Position() math.Point2LL      { return w.runway.Threshold }
func (w *RunwayWaypoint) Type() string                 { return WaypointTypeRunway }
func (w *RunwayWaypoint) Source() Positioned           { return w.runway }
func (w *RunwayWaypoint) ICAODescription() string      { return w.Ident() }
func (w *RunwayWaypoint) Matches(p math.Point2LL) bool { return matches(w, p) }
func (w *RunwayWaypoint) LogValue() slog.Value         { return logValue(w) }
func (w *RunwayWaypoint) Runway() *Runway              { return w.runway }

func (w *RunwayWaypoint) Clone() Waypoint {
	c := *w
	return &c
}

func (w *RunwayWaypoint) WriteProperties(n *props.Node) {
	w.writeBase(n, WaypointTypeRunway)
	if ap := w.runway.Airport(); ap != nil {
		n.SetString("icao", ap.Id)
	}
	n.SetString("ident", w.runway.Id)
}

func (w *RunwayWaypoint) readFields(db NavDB, n *props.Node) error {
	if !n.HasValue("icao") || !n.HasValue("ident") {
		return fmt.Errorf("runway waypoint: %w", ErrMissingIdent)
	}
	icao := n.String("icao", "")
	ap := db.FindAirport(icao)
	if ap == nil {
		return fmt.Errorf("%s: %w", icao, ErrUnknownAirport)
	}
	rwy := ap.Runway(n.String("ident", ""))
	if rwy == nil {
		return fmt.Errorf("%s/%s: %w", icao, n.String("ident", ""), ErrUnknownRunway)
	}
	w.runway = rwy
	return nil
}

///////////////////////////////////////////////////////////////////////////
// HoldWaypoint

// HoldWaypoint is a holding pattern at a position. When a leg's waypoint
// is converted to a hold, the hold keeps the original waypoint so that
// the conversion can be undone.
type HoldWaypoint struct {
	BasicWaypoint
	original      Waypoint
	rightHanded   bool
	isDistance    bool
	inboundRadial float32
	// Minutes or nautical miles, depending on isDistance.
	timeOrDistance float32
}

func NewHoldWaypoint(original Waypoint, owner Owner) *HoldWaypoint {
	h := &HoldWaypoint{
		BasicWaypoint: BasicWaypoint{
			waypointBase: waypointBase{owner: owner},
			ident:        original.Ident(),
			pos:          original.Position(),
		},
		original:    original,
		rightHanded: true,
	}
	h.flags = original.Flags()
	return h
}

func (h *HoldWaypoint) Type() string            { return WaypointTypeHold }
func (h *HoldWaypoint) ICAODescription() string { return h.ident }
func (h *HoldWaypoint) LogValue() slog.Value    { return logValue(h) }
func (h *HoldWaypoint) Matches(p math.Point2LL) bool {
	return matches(h, p)
}

// Original returns the waypoint the hold was made from; it is nil for
// holds read from stored records.
func (h *HoldWaypoint) Original() Waypoint { return h.original }

func (h *HoldWaypoint) Source() Positioned {
	if h.original != nil {
		return h.original.Source()
	}
	return nil
}

func (h *HoldWaypoint) RightHanded() bool       { return h.rightHanded }
func (h *HoldWaypoint) IsDistance() bool        { return h.isDistance }
func (h *HoldWaypoint) InboundRadial() float32  { return h.inboundRadial }
func (h *HoldWaypoint) TimeOrDistance() float32 { return h.timeOrDistance }

func (h *HoldWaypoint) SetHoldRadial(r float32) { h.inboundRadial = math.NormalizeHeading(r) }
func (h *HoldWaypoint) SetRightHanded()         { h.rightHanded = true }
func (h *HoldWaypoint) SetLeftHanded()          { h.rightHanded = false }

// SetHoldTime sets the leg length in seconds.
func (h *HoldWaypoint) SetHoldTime(seconds float32) {
	h.isDistance = false
	h.timeOrDistance = seconds / 60
}

func (h *HoldWaypoint) SetHoldDistance(nm float32) {
	h.isDistance = true
	h.timeOrDistance = nm
}

func (h *HoldWaypoint) Clone() Waypoint {
	c := *h
	return &c
}

func (h *HoldWaypoint) WriteProperties(n *props.Node) {
	h.writeBase(n, WaypointTypeHold)
	h.BasicWaypoint.writeFields(n)
	n.SetBool("right-handed", h.rightHanded)
	n.SetBool("is-distance", h.isDistance)
	n.SetFloat32("inbound-radial-deg", h.inboundRadial)
	n.SetFloat32("td", h.timeOrDistance)
}

func (h *HoldWaypoint) readFields(n *props.Node) error {
	if err := h.BasicWaypoint.readFields(n); err != nil {
		return err
	}
	h.rightHanded = n.Bool("right-handed", true)
	h.isDistance = n.Bool("is-distance", false)
	h.inboundRadial = float32(n.Float("inbound-radial-deg", 0))
	h.timeOrDistance = float32(n.Float("td", 0))
	return nil
}

///////////////////////////////////////////////////////////////////////////
// ViaWaypoint

// ViaWaypoint stands for "follow this airway to this fix"; it is expanded
// into the airway's fixes once the preceding waypoint is known.
type ViaWaypoint struct {
	waypointBase
	airway *Airway
	to     Positioned
}

func NewViaWaypoint(owner Owner, awy *Airway, to Positioned) *ViaWaypoint {
	w := &ViaWaypoint{waypointBase: waypointBase{owner: owner}, airway: awy, to: to}
	w.flags = WaypointFlagVia
	return w
}

func (w *ViaWaypoint) Ident() string {
	return "VIA " + w.airway.Name + " TO " + w.to.Ident()
}

func (w *ViaWaypoint) Position() math.Point2LL      { return w.to.Position() }
func (w *ViaWaypoint) Type() string                 { return WaypointTypeVia }
func (w *ViaWaypoint) Source() Positioned           { return w.to }
func (w *ViaWaypoint) ICAODescription() string      { return w.airway.Name + " " + w.to.Ident() }
func (w *ViaWaypoint) Matches(p math.Point2LL) bool { return matches(w, p) }
func (w *ViaWaypoint) LogValue() slog.Value         { return logValue(w) }
func (w *ViaWaypoint) Airway() *Airway              { return w.airway }
func (w *ViaWaypoint) To() Positioned               { return w.to }

func (w *ViaWaypoint) Clone() Waypoint {
	c := *w
	return &c
}

// Expand returns the airway's waypoints after prev up to and including
// the exit fix.
func (w *ViaWaypoint) Expand(prev Waypoint) ([]Waypoint, error) {
	if prev == nil {
		return nil, ErrNoPrecedingWaypoint
	}
	return w.airway.Via(prev, NewNavaidWaypoint(w.to, nil))
}

func (w *ViaWaypoint) WriteProperties(n *props.Node) {
	w.writeBase(n, WaypointTypeVia)
	n.SetString("airway", w.airway.Name)
	n.SetInt("level", int(w.airway.Level))
	n.SetString("to", w.to.Ident())
	n.SetFloat32("lon", w.to.Position().Longitude())
	n.SetFloat32("lat", w.to.Position().Latitude())
}

func (w *ViaWaypoint) readFields(db NavDB, n *props.Node) error {
	if !n.HasValue("airway") || !n.HasValue("to") {
		return fmt.Errorf("via waypoint: %w", ErrMissingIdent)
	}
	name := n.String("airway", "")
	awy := db.FindAirway(name, AirwayLevel(n.Int("level", int(AirwayLevelAll))))
	if awy == nil {
		return fmt.Errorf("%s: %w", name, ErrUnknownAirway)
	}

	ident := n.String("to", "")
	p := math.InvalidPoint2LL()
	if n.HasChild("lon") {
		p = math.Point2LL{float32(n.Float("lon", 0)), float32(n.Float("lat", 0))}
	}
	to := db.FindClosestWithIdent(ident, p)
	if to == nil {
		return fmt.Errorf("%s: %w", ident, ErrUnknownNavaid)
	}
	w.airway, w.to = awy, to
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Discontinuity

// Discontinuity marks a gap in the route that the crew must resolve.
type Discontinuity struct {
	waypointBase
}

func NewDiscontinuity(owner Owner) *Discontinuity {
	d := &Discontinuity{waypointBase{owner: owner}}
	d.flags = WaypointFlagDynamic | WaypointFlagGenerated
	return d
}

func (d *Discontinuity) Ident() string              { return "DISCONTINUITY" }
func (d *Discontinuity) Position() math.Point2LL    { return math.InvalidPoint2LL() }
func (d *Discontinuity) Type() string               { return WaypointTypeDiscontinuity }
func (d *Discontinuity) Source() Positioned         { return nil }
func (d *Discontinuity) ICAODescription() string    { return "" }
func (d *Discontinuity) Matches(math.Point2LL) bool { return false }
func (d *Discontinuity) LogValue() slog.Value       { return logValue(d) }

func (d *Discontinuity) Clone() Waypoint {
	c := *d
	return &c
}

func (d *Discontinuity) WriteProperties(n *props.Node) {
	d.writeBase(n, WaypointTypeDiscontinuity)
}

///////////////////////////////////////////////////////////////////////////

// WaypointFromProperties creates a waypoint from a stored record,
// dispatching on its "type" value. A record that can't be resolved
// against the database is read as a basic waypoint if it has a position.
func WaypointFromProperties(db NavDB, owner Owner, n *props.Node) (Waypoint, error) {
	typ := n.String("type", "")

	var w Waypoint
	var err error
	switch typ {
	case WaypointTypeBasic:
		b := &BasicWaypoint{}
		w, err = b, b.readFields(n)
	case WaypointTypeNavaid:
		nw := &NavaidWaypoint{}
		w, err = nw, nw.readFields(db, n)
	case WaypointTypeOffsetNavaid:
		o := &OffsetNavaidWaypoint{}
		w, err = o, o.readFields(db, n)
	case WaypointTypeRunway:
		r := &RunwayWaypoint{}
		w, err = r, r.readFields(db, n)
	case WaypointTypeHold:
		h := &HoldWaypoint{}
		w, err = h, h.readFields(n)
	case WaypointTypeVia:
		v := &ViaWaypoint{}
		w, err = v, v.readFields(db, n)
	case WaypointTypeDiscontinuity:
		w = &Discontinuity{}
	default:
		err = fmt.Errorf("%q: %w", typ, ErrUnknownWaypointType)
	}

	if err != nil {
		if !n.HasChild("lon") || !n.HasChild("lat") {
			return nil, err
		}
		b := &BasicWaypoint{}
		if berr := b.readFields(n); berr != nil {
			return nil, err
		}
		w = b
	}

	w.base().readBase(n)
	w.SetOwner(owner)
	return w, nil
}
