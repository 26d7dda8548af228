package asi

import (
	"fmt"
	"strconv"
	"strings"
)

// ImageFormat is the sensor readout format, numbered as the SDK numbers it.
type ImageFormat int

// Image formats supported by ASI cameras.
const (
	FormatRAW8  ImageFormat = 0
	FormatRGB24 ImageFormat = 1
	FormatRAW16 ImageFormat = 2
	FormatY8    ImageFormat = 3
)

var formatNames = map[ImageFormat]string{
	FormatRAW8:  "RAW8",
	FormatRGB24: "RGB24",
	FormatRAW16: "RAW16",
	FormatY8:    "Y8",
}

func (f ImageFormat) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("FORMAT(%d)", int(f))
}

// MarshalText renders the format name.
func (f ImageFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses a format name.
func (f *ImageFormat) UnmarshalText(text []byte) error {
	v, err := ParseImageFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// BytesPerPixel returns the size of one pixel in the downloaded buffer.
func (f ImageFormat) BytesPerPixel() int {
	switch f {
	case FormatRAW16:
		return 2
	case FormatRGB24:
		return 3
	default:
		return 1
	}
}

// Is16Bit reports whether pixels are 16-bit samples.
func (f ImageFormat) Is16Bit() bool {
	return f == FormatRAW16
}

// ParseImageFormat parses a format name such as "RAW16". Matching is case-insensitive.
func ParseImageFormat(s string) (ImageFormat, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for f, name := range formatNames {
		if name == want {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown image format %q", ErrInvalidParameter, s)
}

// BayerPattern is the colour filter layout of a colour sensor.
type BayerPattern int

// Bayer patterns as numbered by the SDK.
const (
	BayerRG BayerPattern = iota
	BayerBG
	BayerGR
	BayerGB
)

func (b BayerPattern) String() string {
	switch b {
	case BayerRG:
		return "RG"
	case BayerBG:
		return "BG"
	case BayerGR:
		return "GR"
	case BayerGB:
		return "GB"
	default:
		return fmt.Sprintf("BAYER(%d)", int(b))
	}
}

// ExposureStatus is the hardware-reported state of the current exposure.
type ExposureStatus int

// Exposure statuses as numbered by the SDK.
const (
	ExposureIdle ExposureStatus = iota
	ExposureWorking
	ExposureSuccess
	ExposureFailed
)

func (s ExposureStatus) String() string {
	switch s {
	case ExposureIdle:
		return "IDLE"
	case ExposureWorking:
		return "WORKING"
	case ExposureSuccess:
		return "SUCCESS"
	case ExposureFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// ControlType identifies a camera control, numbered as the SDK numbers it.
type ControlType int

// Control types. Not every camera reports every control.
const (
	ControlGain ControlType = iota
	ControlExposure
	ControlGamma
	ControlWBR
	ControlWBB
	ControlOffset
	ControlBandwidthOverload
	ControlOverclock
	ControlTemperature
	ControlFlip
	ControlAutoMaxGain
	ControlAutoMaxExposure
	ControlAutoTargetBrightness
	ControlHardwareBin
	ControlHighSpeedMode
	ControlCoolerPowerPercent
	ControlTargetTemp
	ControlCoolerOn
	ControlMonoBin
	ControlFanOn
	ControlPatternAdjust
	ControlAntiDewHeater
)

// ControlCaps describes one control as reported at init time.
type ControlCaps struct {
	// Name is the SDK name (e.g. "HighSpeedMode").
	Name         string
	Description  string
	MaxValue     int64
	MinValue     int64
	DefaultValue int64
	AutoSupport  bool
	Writable     bool
	Type         ControlType
}

// CameraInfo holds the fixed attributes of a camera.
type CameraInfo struct {
	Name              string
	CameraID          int
	MaxHeight         int
	MaxWidth          int
	IsColor           bool
	BayerPattern      BayerPattern
	SupportedBins     []int
	SupportedFormats  []ImageFormat
	PixelSize         float64
	MechanicalShutter bool
	ST4Port           bool
	IsCooler          bool
	IsUSB3            bool
	ElecPerADU        float64
	BitDepth          int
}

// BinsString renders the supported bins as "1x1,2x2".
func (i CameraInfo) BinsString() string {
	parts := make([]string, 0, len(i.SupportedBins))
	for _, b := range i.SupportedBins {
		parts = append(parts, FormatBin(b))
	}
	return strings.Join(parts, ",")
}

// FormatsString renders the supported formats as "RAW8,RAW16".
func (i CameraInfo) FormatsString() string {
	parts := make([]string, 0, len(i.SupportedFormats))
	for _, f := range i.SupportedFormats {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, ",")
}

// SupportsBin reports whether bin is in SupportedBins.
func (i CameraInfo) SupportsBin(bin int) bool {
	for _, b := range i.SupportedBins {
		if b == bin {
			return true
		}
	}
	return false
}

// SupportsFormat reports whether f is in SupportedFormats.
func (i CameraInfo) SupportsFormat(f ImageFormat) bool {
	for _, sf := range i.SupportedFormats {
		if sf == f {
			return true
		}
	}
	return false
}

// FormatBin renders a bin factor as "NxN".
func FormatBin(bin int) string {
	return fmt.Sprintf("%dx%d", bin, bin)
}

// ParseBin accepts "2x2" or "2".
func ParseBin(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if a, b, ok := strings.Cut(s, "x"); ok {
		if a != b {
			return 0, fmt.Errorf("%w: asymmetric bin %q", ErrInvalidParameter, s)
		}
		s = a
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid bin %q", ErrInvalidParameter, s)
	}
	return n, nil
}

// ROI is the active sensor window. Width and Height are in binned pixels.
type ROI struct {
	Width  int
	Height int
	Bin    int
	Format ImageFormat
}

// BufferSize returns the number of bytes one exposure downloads.
func (r ROI) BufferSize() int {
	return r.Width * r.Height * r.Format.BytesPerPixel()
}

// WheelInfo holds the fixed attributes of a filter wheel.
type WheelInfo struct {
	ID      int
	Name    string
	SlotNum int
}
