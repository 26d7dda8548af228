package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

func isROIProperty(name string) bool {
	switch name {
	case PropWidth, PropHeight, PropBin, PropImageType:
		return true
	}
	return false
}

// UpdateProperty validates a client write, issues it to the hardware and
// only then commits it to the store. On any error the store is unchanged.
//
// Errors:
//   - property.ErrUnknownProperty, property.ErrReadOnlyProperty,
//     property.ErrInvalidValue for bad requests
//   - ErrCaptureInProgress for ROI writes during an exposure
//   - a wrapped *asi.HardwareError when the hardware rejects the write
func (c *Camera) UpdateProperty(ctx context.Context, name, raw string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v, err := c.store.Validate(name, raw)
	if err != nil {
		return err
	}

	switch {
	case isROIProperty(name):
		return c.writeROI(name, v)

	case name == PropAlias:
		if err := c.sdk.SetCameraAlias(c.hwID, v.Str); err != nil {
			return fmt.Errorf("camera: set %s: %w", name, err)
		}

	default:
		cc, ok := c.controls[name]
		if !ok {
			return fmt.Errorf("%w: %s", property.ErrReadOnlyProperty, name)
		}
		if err := c.sdk.SetControlValue(c.hwID, cc.Type, v.Int, false); err != nil {
			return fmt.Errorf("camera: set %s: %w", name, err)
		}
	}

	c.set(map[string]property.Value{name: v})
	c.log.Debug("property updated", "property", name, "value", v.Text())
	return nil
}

// writeROI applies one ROI field. Changing the bin shrinks width and height
// to fit the sensor. Callers hold writeMu.
func (c *Camera) writeROI(name string, v property.Value) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrCaptureInProgress
	}
	next := c.roi
	c.mu.Unlock()

	switch name {
	case PropWidth:
		next.Width = int(v.Int)
	case PropHeight:
		next.Height = int(v.Int)
	case PropBin:
		bin, err := asi.ParseBin(v.Str)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", property.ErrInvalidValue, name, err)
		}
		next.Bin = bin
		if next.Width*bin > c.info.MaxWidth {
			next.Width = alignDown(c.info.MaxWidth/bin, 8)
		}
		if next.Height*bin > c.info.MaxHeight {
			next.Height = alignDown(c.info.MaxHeight/bin, 2)
		}
	case PropImageType:
		f, err := asi.ParseImageFormat(v.Str)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", property.ErrInvalidValue, name, err)
		}
		next.Format = f
	}

	if next.Width*next.Bin > c.info.MaxWidth || next.Height*next.Bin > c.info.MaxHeight {
		return fmt.Errorf("%w: %dx%d at bin %d exceeds the %dx%d sensor",
			property.ErrInvalidValue, next.Width, next.Height, next.Bin, c.info.MaxWidth, c.info.MaxHeight)
	}

	if err := c.sdk.SetROIFormat(c.hwID, next); err != nil {
		return fmt.Errorf("camera: set %s: %w", name, err)
	}

	// The SDK may adjust the window; cache what it actually applied.
	actual, err := c.sdk.ROIFormat(c.hwID)
	if err != nil {
		c.log.Warn("re-reading ROI failed, caching requested values", "error", err)
		actual = next
	}

	c.mu.Lock()
	c.roi = actual
	c.mu.Unlock()

	c.set(roiValues(actual))
	c.log.Debug("ROI updated",
		"width", actual.Width, "height", actual.Height,
		"bin", actual.Bin, "format", actual.Format.String())
	return nil
}

func roiValues(r asi.ROI) map[string]property.Value {
	return map[string]property.Value{
		PropWidth:     property.Int(int64(r.Width)),
		PropHeight:    property.Int(int64(r.Height)),
		PropBin:       property.String(asi.FormatBin(r.Bin)),
		PropImageType: property.String(r.Format.String()),
	}
}

func alignDown(n, multiple int) int {
	return n - n%multiple
}

// Refresh reads every control from hardware and commits the values that
// differ from the store. It holds no lock while talking to the hardware.
//
// Controls that fail to read are skipped and reported in the returned
// error; the changed properties are returned either way.
func (c *Camera) Refresh(ctx context.Context) ([]property.Property, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	updates := make([]property.Update, 0, len(c.controlNames))
	var errs []error
	for _, name := range c.controlNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before, err := c.store.Get(name)
		if err != nil {
			continue
		}
		cc := c.controls[name]
		raw, _, err := c.sdk.ControlValue(c.hwID, cc.Type)
		if err != nil {
			c.log.Debug("reading control failed", "control", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		updates = append(updates, property.Update{
			Name:      name,
			Value:     controlValue(cc, raw),
			IfVersion: before.Version,
		})
	}

	changed := c.store.Apply(updates)
	c.notify(changed)

	if len(errs) > 0 {
		return changed, fmt.Errorf("camera: refresh %q: %w", c.info.Name, errors.Join(errs...))
	}
	return changed, nil
}
