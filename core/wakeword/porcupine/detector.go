// Package porcupine adapts the Picovoice Porcupine engine to wakeword.Detector.
package porcupine

import (
	"errors"
	"fmt"
	"os"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
	"github.com/koscakluka/aida/core/wakeword"
)

const (
	DefaultKeyword     = "jarvis"
	DefaultSensitivity = 1.0
)

var ErrMissingAccessKey = errors.New("picovoice access key not found")

type DetectorOptions struct {
	AccessKey   string
	Keyword     string
	Sensitivity float32
}

type DetectorOption func(*DetectorOptions)

func WithAccessKey(accessKey string) DetectorOption {
	return func(o *DetectorOptions) { o.AccessKey = accessKey }
}

func WithKeyword(keyword string) DetectorOption {
	return func(o *DetectorOptions) { o.Keyword = keyword }
}

func WithSensitivity(sensitivity float32) DetectorOption {
	return func(o *DetectorOptions) { o.Sensitivity = sensitivity }
}

type Detector struct {
	options DetectorOptions
	engine  *porcupine.Porcupine
}

var _ wakeword.Detector = (*Detector)(nil)

func NewDetector(opts ...DetectorOption) *Detector {
	options := DetectorOptions{
		Keyword:     DefaultKeyword,
		Sensitivity: DefaultSensitivity,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Detector{options: options}
}

func (d *Detector) Init() error {
	accessKey := d.options.AccessKey
	if accessKey == "" {
		accessKey = os.Getenv("PICOVOICE_ACCESS_KEY")
	}
	if accessKey == "" {
		return ErrMissingAccessKey
	}

	keyword := porcupine.BuiltInKeyword(d.options.Keyword)
	if !keyword.IsValid() {
		return fmt.Errorf("unknown built-in keyword %q", d.options.Keyword)
	}

	engine := &porcupine.Porcupine{
		AccessKey:       accessKey,
		BuiltInKeywords: []porcupine.BuiltInKeyword{keyword},
		Sensitivities:   []float32{d.options.Sensitivity},
	}
	if err := engine.Init(); err != nil {
		return fmt.Errorf("failed to initialize porcupine: %w", err)
	}
	d.engine = engine
	return nil
}

func (d *Detector) Process(pcm []int16) (bool, error) {
	if d.engine == nil {
		return false, wakeword.ErrNotInitialized
	}
	keywordIndex, err := d.engine.Process(pcm)
	if err != nil {
		return false, err
	}
	return keywordIndex >= 0, nil
}

func (d *Detector) FrameLength() int { return porcupine.FrameLength }

func (d *Detector) SampleRate() int { return porcupine.SampleRate }

func (d *Detector) Close() error {
	if d.engine == nil {
		return nil
	}
	err := d.engine.Delete()
	d.engine = nil
	return err
}
