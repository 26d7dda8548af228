//go:build asi && cgo

package asi

/*
#cgo LDFLAGS: -lASICamera2 -lEFWFilter
#include <stdbool.h>
#include <stdlib.h>
#include <ASICamera2.h>
#include <EFW_filter.h>
*/
import "C"

import (
	"unsafe"
)

// CameraLibrary is the CameraSDK backed by libASICamera2.
type CameraLibrary struct{}

// NewCameraLibrary returns the vendor camera SDK.
func NewCameraLibrary() (CameraSDK, error) {
	return CameraLibrary{}, nil
}

func asiBool(b bool) C.ASI_BOOL {
	if b {
		return C.ASI_TRUE
	}
	return C.ASI_FALSE
}

func (CameraLibrary) NumCameras() int {
	return int(C.ASIGetNumOfConnectedCameras())
}

func (CameraLibrary) CameraInfo(index int) (CameraInfo, error) {
	var ci C.ASI_CAMERA_INFO
	if err := CameraError("CameraInfo", int(C.ASIGetCameraProperty(&ci, C.int(index)))); err != nil {
		return CameraInfo{}, err
	}

	info := CameraInfo{
		Name:              CString(C.GoBytes(unsafe.Pointer(&ci.Name[0]), C.int(len(ci.Name)))),
		CameraID:          int(ci.CameraID),
		MaxHeight:         int(ci.MaxHeight),
		MaxWidth:          int(ci.MaxWidth),
		IsColor:           ci.IsColorCam == C.ASI_TRUE,
		BayerPattern:      BayerPattern(ci.BayerPattern),
		PixelSize:         float64(ci.PixelSize),
		MechanicalShutter: ci.MechanicalShutter == C.ASI_TRUE,
		ST4Port:           ci.ST4Port == C.ASI_TRUE,
		IsCooler:          ci.IsCoolerCam == C.ASI_TRUE,
		IsUSB3:            ci.IsUSB3Camera == C.ASI_TRUE,
		ElecPerADU:        float64(ci.ElecPerADU),
		BitDepth:          int(ci.BitDepth),
	}
	for _, b := range ci.SupportedBins {
		if b == 0 {
			break
		}
		info.SupportedBins = append(info.SupportedBins, int(b))
	}
	for _, f := range ci.SupportedVideoFormat {
		if f == C.ASI_IMG_END {
			break
		}
		info.SupportedFormats = append(info.SupportedFormats, ImageFormat(f))
	}
	return info, nil
}

func (CameraLibrary) Open(id int) error {
	return CameraError("Open", int(C.ASIOpenCamera(C.int(id))))
}

func (CameraLibrary) Init(id int) error {
	return CameraError("Init", int(C.ASIInitCamera(C.int(id))))
}

func (CameraLibrary) Close(id int) error {
	return CameraError("Close", int(C.ASICloseCamera(C.int(id))))
}

func (CameraLibrary) NumControls(id int) (int, error) {
	var n C.int
	if err := CameraError("NumControls", int(C.ASIGetNumOfControls(C.int(id), &n))); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (CameraLibrary) ControlCaps(id, controlIndex int) (ControlCaps, error) {
	var cc C.ASI_CONTROL_CAPS
	if err := CameraError("ControlCaps", int(C.ASIGetControlCaps(C.int(id), C.int(controlIndex), &cc))); err != nil {
		return ControlCaps{}, err
	}
	return ControlCaps{
		Name:         CString(C.GoBytes(unsafe.Pointer(&cc.Name[0]), C.int(len(cc.Name)))),
		Description:  CString(C.GoBytes(unsafe.Pointer(&cc.Description[0]), C.int(len(cc.Description)))),
		MaxValue:     int64(cc.MaxValue),
		MinValue:     int64(cc.MinValue),
		DefaultValue: int64(cc.DefaultValue),
		AutoSupport:  cc.IsAutoSupported == C.ASI_TRUE,
		Writable:     cc.IsWritable == C.ASI_TRUE,
		Type:         ControlType(cc.ControlType),
	}, nil
}

// ControlValue widens the platform long to int64.
func (CameraLibrary) ControlValue(id int, ct ControlType) (int64, bool, error) {
	var v C.long
	var auto C.ASI_BOOL
	if err := CameraError("ControlValue", int(C.ASIGetControlValue(C.int(id), C.ASI_CONTROL_TYPE(ct), &v, &auto))); err != nil {
		return 0, false, err
	}
	return int64(v), auto == C.ASI_TRUE, nil
}

// SetControlValue narrows to the platform long. Values that do not fit are
// rejected rather than truncated.
func (CameraLibrary) SetControlValue(id int, ct ControlType, value int64, auto bool) error {
	if int64(C.long(value)) != value {
		return CameraError("SetControlValue", 10)
	}
	return CameraError("SetControlValue", int(C.ASISetControlValue(C.int(id), C.ASI_CONTROL_TYPE(ct), C.long(value), asiBool(auto))))
}

func (CameraLibrary) ROIFormat(id int) (ROI, error) {
	var w, h, bin C.int
	var img C.ASI_IMG_TYPE
	if err := CameraError("ROIFormat", int(C.ASIGetROIFormat(C.int(id), &w, &h, &bin, &img))); err != nil {
		return ROI{}, err
	}
	return ROI{Width: int(w), Height: int(h), Bin: int(bin), Format: ImageFormat(img)}, nil
}

func (CameraLibrary) SetROIFormat(id int, roi ROI) error {
	return CameraError("SetROIFormat", int(C.ASISetROIFormat(C.int(id), C.int(roi.Width), C.int(roi.Height), C.int(roi.Bin), C.ASI_IMG_TYPE(roi.Format))))
}

func (CameraLibrary) StartExposure(id int, dark bool) error {
	return CameraError("StartExposure", int(C.ASIStartExposure(C.int(id), asiBool(dark))))
}

func (CameraLibrary) StopExposure(id int) error {
	return CameraError("StopExposure", int(C.ASIStopExposure(C.int(id))))
}

func (CameraLibrary) ExposureStatus(id int) (ExposureStatus, error) {
	var st C.ASI_EXPOSURE_STATUS
	if err := CameraError("ExposureStatus", int(C.ASIGetExpStatus(C.int(id), &st))); err != nil {
		return ExposureIdle, err
	}
	return ExposureStatus(st), nil
}

func (CameraLibrary) DownloadExposure(id int, buf []byte) error {
	if len(buf) == 0 {
		return CameraError("DownloadExposure", 13)
	}
	return CameraError("DownloadExposure", int(C.ASIGetDataAfterExp(C.int(id), (*C.uchar)(unsafe.Pointer(&buf[0])), C.long(len(buf)))))
}

func (CameraLibrary) CameraAlias(id int) (string, error) {
	var aid C.ASI_ID
	if err := CameraError("CameraAlias", int(C.ASIGetID(C.int(id), &aid))); err != nil {
		return "", err
	}
	return CString(C.GoBytes(unsafe.Pointer(&aid.id[0]), C.int(len(aid.id)))), nil
}

func (CameraLibrary) SetCameraAlias(id int, alias string) error {
	if len(alias) > AliasLength {
		return CameraError("SetCameraAlias", 10)
	}
	var aid C.ASI_ID
	for i := 0; i < len(alias); i++ {
		aid.id[i] = C.uchar(alias[i])
	}
	return CameraError("SetCameraAlias", int(C.ASISetID(C.int(id), aid)))
}

// WheelLibrary is the WheelSDK backed by libEFWFilter.
type WheelLibrary struct{}

// NewWheelLibrary returns the vendor filter wheel SDK.
func NewWheelLibrary() (WheelSDK, error) {
	return WheelLibrary{}, nil
}

func (WheelLibrary) NumWheels() int {
	return int(C.EFWGetNum())
}

func (WheelLibrary) WheelID(index int) (int, error) {
	var id C.int
	if err := WheelError("WheelID", int(C.EFWGetID(C.int(index), &id))); err != nil {
		return 0, err
	}
	return int(id), nil
}

func (WheelLibrary) Open(id int) error {
	return WheelError("Open", int(C.EFWOpen(C.int(id))))
}

func (WheelLibrary) Close(id int) error {
	return WheelError("Close", int(C.EFWClose(C.int(id))))
}

func (WheelLibrary) Info(id int) (WheelInfo, error) {
	var wi C.EFW_INFO
	if err := WheelError("Info", int(C.EFWGetProperty(C.int(id), &wi))); err != nil {
		return WheelInfo{}, err
	}
	return WheelInfo{
		ID:      int(wi.ID),
		Name:    CString(C.GoBytes(unsafe.Pointer(&wi.Name[0]), C.int(len(wi.Name)))),
		SlotNum: int(wi.slotNum),
	}, nil
}

func (WheelLibrary) Position(id int) (int, error) {
	var pos C.int
	if err := WheelError("Position", int(C.EFWGetPosition(C.int(id), &pos))); err != nil {
		return 0, err
	}
	return int(pos), nil
}

func (WheelLibrary) SetPosition(id, slot int) error {
	return WheelError("SetPosition", int(C.EFWSetPosition(C.int(id), C.int(slot))))
}

func (WheelLibrary) Direction(id int) (bool, error) {
	var uni C.bool
	if err := WheelError("Direction", int(C.EFWGetDirection(C.int(id), &uni))); err != nil {
		return false, err
	}
	return bool(uni), nil
}

func (WheelLibrary) SetDirection(id int, unidirectional bool) error {
	return WheelError("SetDirection", int(C.EFWSetDirection(C.int(id), C.bool(unidirectional))))
}

func (WheelLibrary) Calibrate(id int) error {
	return WheelError("Calibrate", int(C.EFWCalibrate(C.int(id))))
}
