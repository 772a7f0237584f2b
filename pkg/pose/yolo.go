package pose

import (
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"github.com/teslashibe/go-posecam/pkg/debug"
	"github.com/teslashibe/go-posecam/pkg/geometry"
	"gocv.io/x/gocv"
)

// yoloPoseStride is the row count of a YOLOv8-pose output:
// 4 bbox + 1 person score + 17 keypoints * (x, y, visibility).
const yoloPoseStride = 5 + NumParts*3

// YOLODetector runs YOLOv8-pose through OpenCV's DNN module.
type YOLODetector struct {
	net       gocv.Net
	config    Config
	mu        sync.Mutex // Protects inference
	inputSize image.Point
}

// NewYOLO loads a YOLOv8-pose ONNX model.
func NewYOLO(cfg Config) (*YOLODetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load pose model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds poses in frame.
func (d *YOLODetector) Detect(frame gocv.Mat) ([]Pose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	imgW := float32(frame.Cols())
	imgH := float32(frame.Rows())

	blob := gocv.BlobFromImage(frame, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	poses, err := d.parseOutput(output, imgW, imgH)
	if err != nil {
		return nil, err
	}

	if len(poses) > 0 {
		debug.Log("🕺 YOLO-pose found %d pose(s)\n", len(poses))
	}
	return poses, nil
}

// parseOutput decodes the [1, 56, N] tensor: each column is a candidate,
// rows are bbox, person score, then keypoint triples.
func (d *YOLODetector) parseOutput(output gocv.Mat, imgW, imgH float32) ([]Pose, error) {
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output tensor: %w", err)
	}

	sizes := output.Size()
	if len(sizes) != 3 || sizes[1] != yoloPoseStride {
		return nil, fmt.Errorf("unexpected pose output shape %v", sizes)
	}
	n := sizes[2]

	scaleX := imgW / float32(d.config.InputWidth)
	scaleY := imgH / float32(d.config.InputHeight)

	var boxes []image.Rectangle
	var scores []float32
	var candidates []int

	for i := 0; i < n; i++ {
		score := data[4*n+i]
		if score < d.config.ConfidenceThresh {
			continue
		}

		cx := data[0*n+i]
		cy := data[1*n+i]
		w := data[2*n+i]
		h := data[3*n+i]

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		scores = append(scores, score)
		candidates = append(candidates, i)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)
	sort.Slice(indices, func(a, b int) bool { return scores[indices[a]] > scores[indices[b]] })

	poses := make([]Pose, 0, len(indices))
	for _, idx := range indices {
		if d.config.MaxPoses > 0 && len(poses) >= d.config.MaxPoses {
			break
		}

		col := candidates[idx]
		keypoints := make([]Keypoint, NumParts)
		for k := 0; k < NumParts; k++ {
			base := (5 + k*3) * n
			keypoints[k] = Keypoint{
				Part: Part(k),
				Position: geometry.Point{
					X: float64(data[base+col] * scaleX),
					Y: float64(data[base+n+col] * scaleY),
				},
				Score: float64(data[base+2*n+col]),
			}
		}

		poses = append(poses, Pose{
			Index:     len(poses),
			Score:     float64(scores[idx]),
			Keypoints: keypoints,
			Skeleton:  BuildSkeleton(keypoints, d.config.SkeletonMinScore),
		})
	}

	return poses, nil
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
