package asi

import (
	"fmt"
	"sync"
	"time"
)

// CameraSpec describes one simulated camera.
type CameraSpec struct {
	Name   string
	Width  int
	Height int
	Color  bool
	Cooled bool
}

// DefaultCameraSpec returns a colour, cooled camera with the given sensor size.
func DefaultCameraSpec(index, width, height int) CameraSpec {
	return CameraSpec{
		Name:   fmt.Sprintf("ZWO ASI Simulator %d", index),
		Width:  width,
		Height: height,
		Color:  true,
		Cooled: true,
	}
}

// ControlWrite records one SetControlValue call accepted by the simulator.
type ControlWrite struct {
	Type  ControlType
	Value int64
	Auto  bool
}

type simControl struct {
	caps  ControlCaps
	value int64
	auto  bool
}

type simCamera struct {
	info     CameraInfo
	opened   bool
	inited   bool
	controls []*simControl
	roi      ROI
	alias    string

	status    ExposureStatus
	expStart  time.Time
	expLength time.Duration
	failNext  bool

	writes []ControlWrite
	faults map[string]int
}

// CameraSimulator is an in-memory CameraSDK. Exposures last as long as the
// Exposure control says and produce a deterministic ramp of pixel values.
type CameraSimulator struct {
	mu      sync.Mutex
	cameras []*simCamera
	now     func() time.Time
}

// NewCameraSimulator creates a simulator with one camera per spec. Camera
// ids equal their enumeration index.
func NewCameraSimulator(specs ...CameraSpec) *CameraSimulator {
	s := &CameraSimulator{now: time.Now}
	for i, spec := range specs {
		s.cameras = append(s.cameras, newSimCamera(i, spec))
	}
	return s
}

func newSimCamera(id int, spec CameraSpec) *simCamera {
	info := CameraInfo{
		Name:             spec.Name,
		CameraID:         id,
		MaxWidth:         spec.Width,
		MaxHeight:        spec.Height,
		IsColor:          spec.Color,
		BayerPattern:     BayerRG,
		SupportedBins:    []int{1, 2},
		SupportedFormats: []ImageFormat{FormatRAW8, FormatRAW16},
		PixelSize:        4.63,
		ST4Port:          true,
		IsCooler:         spec.Cooled,
		IsUSB3:           true,
		ElecPerADU:       0.25,
		BitDepth:         14,
	}
	if spec.Color {
		info.SupportedFormats = []ImageFormat{FormatRAW8, FormatRGB24, FormatRAW16, FormatY8}
	}

	caps := []ControlCaps{
		{Name: "Gain", Description: "Gain", MinValue: 0, MaxValue: 570, DefaultValue: 200, Writable: true, Type: ControlGain},
		{Name: "Exposure", Description: "Exposure Time(us)", MinValue: 32, MaxValue: 2000000000, DefaultValue: 10000, AutoSupport: true, Writable: true, Type: ControlExposure},
		{Name: "Offset", Description: "offset", MinValue: 0, MaxValue: 80, DefaultValue: 8, Writable: true, Type: ControlOffset},
		{Name: "BandWidth", Description: "The total data transfer rate percentage", MinValue: 40, MaxValue: 100, DefaultValue: 50, AutoSupport: true, Writable: true, Type: ControlBandwidthOverload},
		{Name: "Flip", Description: "Flip: 0->None 1->Horiz 2->Vert 3->Both", MinValue: 0, MaxValue: 3, DefaultValue: 0, Writable: true, Type: ControlFlip},
		{Name: "HighSpeedMode", Description: "Is high speed mode:0->No 1->Yes", MinValue: 0, MaxValue: 1, DefaultValue: 0, Writable: true, Type: ControlHighSpeedMode},
		{Name: "Temperature", Description: "Sensor temperature(degrees Celsius)", MinValue: -500, MaxValue: 1000, DefaultValue: 20, Type: ControlTemperature},
	}
	if spec.Cooled {
		caps = append(caps,
			ControlCaps{Name: "CoolerPowerPerc", Description: "Cooler power percent", MinValue: 0, MaxValue: 100, DefaultValue: 0, Type: ControlCoolerPowerPercent},
			ControlCaps{Name: "TargetTemp", Description: "Target temperature(cool camera only)", MinValue: -40, MaxValue: 30, DefaultValue: 0, Writable: true, Type: ControlTargetTemp},
			ControlCaps{Name: "CoolerOn", Description: "turn on/off cooler(cool camera only)", MinValue: 0, MaxValue: 1, DefaultValue: 0, Writable: true, Type: ControlCoolerOn},
		)
	}

	cam := &simCamera{
		info:   info,
		roi:    ROI{Width: spec.Width, Height: spec.Height, Bin: 1, Format: FormatRAW8},
		faults: make(map[string]int),
	}
	for _, c := range caps {
		cam.controls = append(cam.controls, &simControl{caps: c, value: c.DefaultValue})
	}
	return cam
}

// lookup returns the camera for id. With requireOpen it also fails on a
// closed camera. Callers hold s.mu.
func (s *CameraSimulator) lookup(op string, id int, requireOpen bool) (*simCamera, error) {
	if id < 0 || id >= len(s.cameras) {
		return nil, CameraError(op, 2)
	}
	cam := s.cameras[id]
	if code, ok := cam.faults[op]; ok {
		delete(cam.faults, op)
		return nil, CameraError(op, code)
	}
	if requireOpen && !cam.opened {
		return nil, CameraError(op, 4)
	}
	return cam, nil
}

func (s *CameraSimulator) NumCameras() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cameras)
}

func (s *CameraSimulator) CameraInfo(index int) (CameraInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.cameras) {
		return CameraInfo{}, CameraError("CameraInfo", 1)
	}
	return s.cameras[index].info, nil
}

func (s *CameraSimulator) Open(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("Open", id, false)
	if err != nil {
		return err
	}
	cam.opened = true
	return nil
}

func (s *CameraSimulator) Init(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("Init", id, true)
	if err != nil {
		return err
	}
	cam.inited = true
	return nil
}

func (s *CameraSimulator) Close(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("Close", id, false)
	if err != nil {
		return err
	}
	cam.opened = false
	cam.inited = false
	cam.status = ExposureIdle
	return nil
}

func (s *CameraSimulator) NumControls(id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("NumControls", id, true)
	if err != nil {
		return 0, err
	}
	return len(cam.controls), nil
}

func (s *CameraSimulator) ControlCaps(id, controlIndex int) (ControlCaps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("ControlCaps", id, true)
	if err != nil {
		return ControlCaps{}, err
	}
	if controlIndex < 0 || controlIndex >= len(cam.controls) {
		return ControlCaps{}, CameraError("ControlCaps", 1)
	}
	return cam.controls[controlIndex].caps, nil
}

func (cam *simCamera) control(ct ControlType) *simControl {
	for _, c := range cam.controls {
		if c.caps.Type == ct {
			return c
		}
	}
	return nil
}

func (s *CameraSimulator) ControlValue(id int, ct ControlType) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("ControlValue", id, true)
	if err != nil {
		return 0, false, err
	}
	c := cam.control(ct)
	if c == nil {
		return 0, false, CameraError("ControlValue", 3)
	}
	return c.value, c.auto, nil
}

func (s *CameraSimulator) SetControlValue(id int, ct ControlType, value int64, auto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("SetControlValue", id, true)
	if err != nil {
		return err
	}
	c := cam.control(ct)
	if c == nil {
		return CameraError("SetControlValue", 3)
	}
	if !c.caps.Writable {
		return CameraError("SetControlValue", 3)
	}
	if value < c.caps.MinValue || value > c.caps.MaxValue {
		return CameraError("SetControlValue", 10)
	}
	c.value = value
	c.auto = auto
	cam.writes = append(cam.writes, ControlWrite{Type: ct, Value: value, Auto: auto})
	return nil
}

func (s *CameraSimulator) ROIFormat(id int) (ROI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("ROIFormat", id, true)
	if err != nil {
		return ROI{}, err
	}
	return cam.roi, nil
}

func (s *CameraSimulator) SetROIFormat(id int, roi ROI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("SetROIFormat", id, true)
	if err != nil {
		return err
	}
	if cam.status == ExposureWorking {
		return CameraError("SetROIFormat", 15)
	}
	if !cam.info.SupportsBin(roi.Bin) {
		return CameraError("SetROIFormat", 8)
	}
	if !cam.info.SupportsFormat(roi.Format) {
		return CameraError("SetROIFormat", 9)
	}
	if roi.Width <= 0 || roi.Height <= 0 ||
		roi.Width*roi.Bin > cam.info.MaxWidth || roi.Height*roi.Bin > cam.info.MaxHeight {
		return CameraError("SetROIFormat", 8)
	}
	cam.roi = roi
	return nil
}

func (s *CameraSimulator) StartExposure(id int, dark bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("StartExposure", id, true)
	if err != nil {
		return err
	}
	if cam.status == ExposureWorking {
		return CameraError("StartExposure", 15)
	}
	length := time.Duration(10000) * time.Microsecond
	if c := cam.control(ControlExposure); c != nil {
		length = time.Duration(c.value) * time.Microsecond
	}
	cam.status = ExposureWorking
	cam.expStart = s.now()
	cam.expLength = length
	return nil
}

func (s *CameraSimulator) StopExposure(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("StopExposure", id, true)
	if err != nil {
		return err
	}
	if cam.status == ExposureWorking {
		cam.status = ExposureFailed
	}
	return nil
}

func (s *CameraSimulator) ExposureStatus(id int) (ExposureStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("ExposureStatus", id, true)
	if err != nil {
		return ExposureIdle, err
	}
	if cam.status == ExposureWorking && s.now().Sub(cam.expStart) >= cam.expLength {
		if cam.failNext {
			cam.failNext = false
			cam.status = ExposureFailed
		} else {
			cam.status = ExposureSuccess
		}
	}
	return cam.status, nil
}

func (s *CameraSimulator) DownloadExposure(id int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("DownloadExposure", id, true)
	if err != nil {
		return err
	}
	if cam.status != ExposureSuccess {
		return CameraError("DownloadExposure", 12)
	}
	if len(buf) < cam.roi.BufferSize() {
		return CameraError("DownloadExposure", 13)
	}
	for i := range buf {
		buf[i] = byte(i)
	}
	cam.status = ExposureIdle
	return nil
}

func (s *CameraSimulator) CameraAlias(id int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("CameraAlias", id, true)
	if err != nil {
		return "", err
	}
	return cam.alias, nil
}

func (s *CameraSimulator) SetCameraAlias(id int, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, err := s.lookup("SetCameraAlias", id, true)
	if err != nil {
		return err
	}
	if len(alias) > AliasLength {
		return CameraError("SetCameraAlias", 10)
	}
	cam.alias = alias
	return nil
}

// InjectFault makes the next call of op on camera id fail with code.
func (s *CameraSimulator) InjectFault(id int, op string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= 0 && id < len(s.cameras) {
		s.cameras[id].faults[op] = code
	}
}

// FailNextExposure makes the next exposure on camera id end in ExposureFailed.
func (s *CameraSimulator) FailNextExposure(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= 0 && id < len(s.cameras) {
		s.cameras[id].failNext = true
	}
}

// SetHardwareValue changes a control as if the camera changed it itself,
// without recording a write.
func (s *CameraSimulator) SetHardwareValue(id int, ct ControlType, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.cameras) {
		return
	}
	if c := s.cameras[id].control(ct); c != nil {
		c.value = value
	}
}

// Writes returns the control writes accepted for camera id.
func (s *CameraSimulator) Writes(id int) []ControlWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.cameras) {
		return nil
	}
	out := make([]ControlWrite, len(s.cameras[id].writes))
	copy(out, s.cameras[id].writes)
	return out
}

// IsOpen reports whether camera id is open.
func (s *CameraSimulator) IsOpen(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id >= 0 && id < len(s.cameras) && s.cameras[id].opened
}
