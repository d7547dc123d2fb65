// Package detection holds the per-frame object detections delivered by the
// perception pipeline and their wire representation.
package detection

import (
	"time"

	"github.com/tphakala/train-spotter/internal/geometry"
)

// BoundingBox is a detection rectangle in pixel units.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the pixel area of the box.
func (b BoundingBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Detection is one tracked object observed in one frame.
type Detection struct {
	TrackID     int64
	Label       Label  // resolved once from ClassLabel
	ClassLabel  string // text as reported by the pipeline
	Confidence  float64
	Box         BoundingBox
	FrameWidth  float64
	FrameHeight float64
	LaneID      string // pre-assigned lane, empty when unassigned
}

// New builds a Detection and resolves its label.
func New(trackID int64, classLabel string, confidence float64, box BoundingBox, frameWidth, frameHeight float64) Detection {
	return Detection{
		TrackID:     trackID,
		Label:       ParseLabel(classLabel),
		ClassLabel:  classLabel,
		Confidence:  confidence,
		Box:         box,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}
}

// NormalizedBounds returns the box divided by the frame size and clamped to
// [0,1]. An unknown frame size yields an empty box.
func (d *Detection) NormalizedBounds() geometry.Box {
	if d.FrameWidth <= 0 || d.FrameHeight <= 0 {
		return geometry.Box{}
	}
	return geometry.Box{
		MinX: geometry.Clamp01(d.Box.Left / d.FrameWidth),
		MinY: geometry.Clamp01(d.Box.Top / d.FrameHeight),
		MaxX: geometry.Clamp01((d.Box.Left + d.Box.Width) / d.FrameWidth),
		MaxY: geometry.Clamp01((d.Box.Top + d.Box.Height) / d.FrameHeight),
	}
}

// Center returns the center of the normalized bounds.
func (d *Detection) Center() geometry.Point {
	return d.NormalizedBounds().Center()
}

// Frame is the set of detections observed at one instant.
type Frame struct {
	Timestamp  time.Time
	CameraID   string
	Detections []Detection
}
