package overlay

// Serialize copies an overlay snapshot into its storage-safe form. Scalar
// fields are copied verbatim; each point is mapped to a fresh Point keeping
// only the timestamp/dataIndex/value coordinates, which discards any
// transient fields the engine attached. Pure: the input is not mutated and
// no reference is shared with the result.
func Serialize(o Overlay) Serialized {
	points := make([]Point, len(o.Points))
	for i, p := range o.Points {
		points[i] = clonePoint(p.Point)
	}
	return Serialized{
		ID:         o.ID,
		GroupID:    o.GroupID,
		Name:       o.Name,
		Points:     points,
		Lock:       o.Lock,
		Visible:    o.Visible,
		Mode:       string(o.Mode),
		ExtendData: cloneRaw(o.ExtendData),
		Styles:     cloneRaw(o.Styles),
	}
}

// Deserialize is the structural inverse of Serialize: it turns a stored
// record back into a creation request. The mode string is widened back to
// Mode without validation; unknown values pass through to the engine, whose
// own validation decides the outcome.
func Deserialize(rec Serialized) CreateRequest {
	points := make([]Point, len(rec.Points))
	for i, p := range rec.Points {
		points[i] = clonePoint(p)
	}
	return CreateRequest{
		ID:         rec.ID,
		GroupID:    rec.GroupID,
		Name:       rec.Name,
		Points:     points,
		Lock:       rec.Lock,
		Visible:    rec.Visible,
		Mode:       Mode(rec.Mode),
		ExtendData: cloneRaw(rec.ExtendData),
		Styles:     cloneRaw(rec.Styles),
	}
}

func clonePoint(p Point) Point {
	var out Point
	if p.Timestamp != nil {
		ts := *p.Timestamp
		out.Timestamp = &ts
	}
	if p.DataIndex != nil {
		di := *p.DataIndex
		out.DataIndex = &di
	}
	if p.Value != nil {
		v := *p.Value
		out.Value = &v
	}
	return out
}

func cloneRaw(raw []byte) []byte {
	if raw == nil {
		return nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
