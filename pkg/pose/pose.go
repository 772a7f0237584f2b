// Package pose holds the pose-estimation data model (keypoints, skeleton
// edges, poses, timestamped snapshots) and the detectors that produce it.
package pose

import (
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-posecam/pkg/geometry"
)

// Part identifies a body landmark.
type Part int

// COCO keypoint order, as emitted by PoseNet and YOLOv8-pose.
const (
	Nose Part = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// Generic is any landmark outside the COCO set.
	Generic
)

// NumParts is the number of COCO keypoints a full pose carries.
const NumParts = int(Generic)

var partNames = [...]string{
	Nose:          "nose",
	LeftEye:       "leftEye",
	RightEye:      "rightEye",
	LeftEar:       "leftEar",
	RightEar:      "rightEar",
	LeftShoulder:  "leftShoulder",
	RightShoulder: "rightShoulder",
	LeftElbow:     "leftElbow",
	RightElbow:    "rightElbow",
	LeftWrist:     "leftWrist",
	RightWrist:    "rightWrist",
	LeftHip:       "leftHip",
	RightHip:      "rightHip",
	LeftKnee:      "leftKnee",
	RightKnee:     "rightKnee",
	LeftAnkle:     "leftAnkle",
	RightAnkle:    "rightAnkle",
	Generic:       "generic",
}

func (p Part) String() string {
	if p < 0 || int(p) >= len(partNames) {
		return "generic"
	}
	return partNames[p]
}

// ParsePart maps a PoseNet part name to a Part. Unknown names are Generic.
func ParsePart(name string) Part {
	for i, n := range partNames {
		if n == name {
			return Part(i)
		}
	}
	return Generic
}

// Glyph is the marker category drawn for a keypoint.
type Glyph int

const (
	GlyphDot Glyph = iota
	GlyphEye
	GlyphNose
	GlyphEar
)

// Glyph returns the marker category for the part: eyes, nose and ears get
// their own shapes, everything else is a dot.
func (p Part) Glyph() Glyph {
	switch p {
	case LeftEye, RightEye:
		return GlyphEye
	case Nose:
		return GlyphNose
	case LeftEar, RightEar:
		return GlyphEar
	default:
		return GlyphDot
	}
}

// Keypoint is a detected landmark in source-frame pixel space.
type Keypoint struct {
	Part     Part           `json:"part"`
	Position geometry.Point `json:"position"`
	Score    float64        `json:"score"` // 0-1
}

// Edge is a bone between two keypoints. Used only for line rendering.
type Edge struct {
	A Keypoint `json:"a"`
	B Keypoint `json:"b"`
}

// Pose is one detected person. Index is the detection order within its
// result batch and only selects a color; it does not track identity.
type Pose struct {
	Index     int        `json:"index"`
	Score     float64    `json:"score"`
	Keypoints []Keypoint `json:"keypoints"`
	Skeleton  []Edge     `json:"skeleton"`
}

// Keypoint returns the keypoint for part, if present.
func (p Pose) Keypoint(part Part) (Keypoint, bool) {
	for _, kp := range p.Keypoints {
		if kp.Part == part {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Snapshot is one timestamped detection result. Never mutated after creation.
type Snapshot struct {
	ID         string        `json:"id"`
	Poses      []Pose        `json:"poses"`
	Source     geometry.Size `json:"source"` // frame the poses were detected on; empty means current
	CapturedAt time.Time     `json:"captured_at"`
}

// NewSnapshot stamps a detection result. The poses slice is copied so the
// producer may reuse its buffer.
func NewSnapshot(poses []Pose, capturedAt time.Time) Snapshot {
	cp := make([]Pose, len(poses))
	copy(cp, poses)
	return Snapshot{
		ID:         uuid.New().String(),
		Poses:      cp,
		CapturedAt: capturedAt,
	}
}

// AdjacentPairs lists the connected parts PoseNet draws as a skeleton.
var AdjacentPairs = [][2]Part{
	{LeftHip, LeftShoulder},
	{LeftElbow, LeftShoulder},
	{LeftElbow, LeftWrist},
	{LeftHip, LeftKnee},
	{LeftKnee, LeftAnkle},
	{RightHip, RightShoulder},
	{RightElbow, RightShoulder},
	{RightElbow, RightWrist},
	{RightHip, RightKnee},
	{RightKnee, RightAnkle},
	{LeftShoulder, RightShoulder},
	{LeftHip, RightHip},
}

// BuildSkeleton returns the edges of AdjacentPairs whose endpoints both
// score at least minConfidence.
func BuildSkeleton(keypoints []Keypoint, minConfidence float64) []Edge {
	byPart := make(map[Part]Keypoint, len(keypoints))
	for _, kp := range keypoints {
		byPart[kp.Part] = kp
	}

	var edges []Edge
	for _, pair := range AdjacentPairs {
		a, okA := byPart[pair[0]]
		b, okB := byPart[pair[1]]
		if !okA || !okB {
			continue
		}
		if a.Score < minConfidence || b.Score < minConfidence {
			continue
		}
		edges = append(edges, Edge{A: a, B: b})
	}
	return edges
}
