package detection

import (
	"encoding/json"
	"math"
	"time"

	"github.com/tphakala/train-spotter/internal/errors"
)

// FrameRecord is the JSON form of a Frame as produced by the perception
// pipeline. Timestamp is Unix seconds with fractional part.
type FrameRecord struct {
	Timestamp  float64           `json:"timestamp"`
	CameraID   string            `json:"camera_id,omitempty"`
	Detections []DetectionRecord `json:"detections"`
}

// DetectionRecord is the JSON form of a Detection. When ClassLabel is empty
// the label is derived from ClassID.
type DetectionRecord struct {
	TrackID     int64       `json:"track_id"`
	ClassID     *int        `json:"class_id,omitempty"`
	ClassLabel  string      `json:"class_label"`
	Confidence  float64     `json:"confidence"`
	BBox        BoundingBox `json:"bbox"`
	FrameWidth  float64     `json:"frame_width"`
	FrameHeight float64     `json:"frame_height"`
	LaneID      string      `json:"lane_id,omitempty"`
}

// DecodeFrame parses one JSON frame record. A missing timestamp is left as
// the zero time for the caller to stamp.
func DecodeFrame(data []byte) (Frame, error) {
	var rec FrameRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Frame{}, errors.New(err).
			Component("detection").
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_frame").
			Build()
	}
	return rec.Frame(), nil
}

// Frame converts the record to a Frame.
func (r *FrameRecord) Frame() Frame {
	f := Frame{
		CameraID:   r.CameraID,
		Detections: make([]Detection, 0, len(r.Detections)),
	}
	if r.Timestamp > 0 {
		f.Timestamp = FromUnixSeconds(r.Timestamp)
	}
	for i := range r.Detections {
		f.Detections = append(f.Detections, r.Detections[i].Detection())
	}
	return f
}

// Detection converts the record to a Detection.
func (r *DetectionRecord) Detection() Detection {
	classLabel := r.ClassLabel
	if classLabel == "" && r.ClassID != nil {
		_, classLabel = LabelForClassID(*r.ClassID)
	}
	d := New(r.TrackID, classLabel, r.Confidence, r.BBox, r.FrameWidth, r.FrameHeight)
	d.LaneID = r.LaneID
	return d
}

// NewFrameRecord converts a Frame back to its wire form.
func NewFrameRecord(f *Frame) FrameRecord {
	rec := FrameRecord{
		CameraID:   f.CameraID,
		Detections: make([]DetectionRecord, 0, len(f.Detections)),
	}
	if !f.Timestamp.IsZero() {
		rec.Timestamp = UnixSeconds(f.Timestamp)
	}
	for i := range f.Detections {
		d := &f.Detections[i]
		rec.Detections = append(rec.Detections, DetectionRecord{
			TrackID:     d.TrackID,
			ClassLabel:  d.ClassLabel,
			Confidence:  d.Confidence,
			BBox:        d.Box,
			FrameWidth:  d.FrameWidth,
			FrameHeight: d.FrameHeight,
			LaneID:      d.LaneID,
		})
	}
	return rec
}

// FromUnixSeconds converts fractional Unix seconds to a time, rounded to the microsecond.
func FromUnixSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond))
}

// UnixSeconds converts a time to fractional Unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}
