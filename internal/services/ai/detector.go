package ai

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"sentrycam/internal/config"
	"sentrycam/internal/logger"
	"sentrycam/internal/models"
)

const inputSize = 300 // MobileNet SSD working resolution

// cocoClasses maps MobileNet SSD class IDs to the labels this system tracks.
// IDs outside this map are ignored.
var cocoClasses = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	4:  "motorcycle",
	6:  "bus",
	7:  "train",
	8:  "truck",
	15: "cat",
	16: "dog",
}

// Prediction is a single raw model output in source-frame pixel coordinates.
type Prediction struct {
	Label      string
	Confidence float64
	Box        models.Box
}

// DetectorService runs object-detection inference over encoded frames.
type DetectorService struct {
	net        gocv.Net
	loaded     bool
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetectorService loads the detection network from the configured model files.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
		return service
	}

	return service
}

// initializeNet loads the network from the model and config files.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return fmt.Errorf("failed to set target: %w", err)
	}

	s.net = net
	s.loaded = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Detect decodes an encoded frame, runs a forward pass and returns all raw
// predictions in source pixel coordinates along with the frame dimensions.
// Confidence and label filtering is the caller's responsibility.
func (s *DetectorService) Detect(frameData []byte) ([]Prediction, int, int, error) {
	if !s.loaded {
		return nil, 0, 0, fmt.Errorf("detection network is not loaded")
	}

	mat, err := gocv.IMDecode(frameData, gocv.IMReadColor)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, 0, 0, fmt.Errorf("decoded frame is empty")
	}

	frameWidth := mat.Cols()
	frameHeight := mat.Rows()

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(inputSize, inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	detections := s.net.Forward("")
	defer detections.Close()

	// Output rows are [batch, classID, confidence, left, top, right, bottom]
	// with normalized 0-1 coordinates.
	var predictions []Prediction
	rows := detections.Total() / 7

	for i := 0; i < rows; i++ {
		confidence := float64(detections.GetFloatAt(0, i*7+2))
		classID := int(detections.GetFloatAt(0, i*7+1))

		label, known := cocoClasses[classID]
		if !known {
			continue
		}

		left := float64(detections.GetFloatAt(0, i*7+3))
		top := float64(detections.GetFloatAt(0, i*7+4))
		right := float64(detections.GetFloatAt(0, i*7+5))
		bottom := float64(detections.GetFloatAt(0, i*7+6))

		predictions = append(predictions, Prediction{
			Label:      label,
			Confidence: confidence,
			Box: models.Box{
				X:      int(left * float64(frameWidth)),
				Y:      int(top * float64(frameHeight)),
				Width:  int((right - left) * float64(frameWidth)),
				Height: int((bottom - top) * float64(frameHeight)),
			},
		})
	}

	return predictions, frameWidth, frameHeight, nil
}

// Close releases the network resources.
func (s *DetectorService) Close() {
	if s.loaded {
		s.net.Close()
		s.loaded = false
	}
}
