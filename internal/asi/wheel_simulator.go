package asi

import (
	"fmt"
	"sync"
	"time"
)

type simWheel struct {
	info           WheelInfo
	opened         bool
	position       int
	target         int
	moveUntil      time.Time
	unidirectional bool
	faults         map[string]int
}

// WheelSimulator is an in-memory WheelSDK. Moves take MoveTime per call
// and Calibrate takes twice that.
type WheelSimulator struct {
	mu       sync.Mutex
	wheels   []*simWheel
	now      func() time.Time
	MoveTime time.Duration
}

// NewWheelSimulator creates count wheels with the given number of slots.
// Wheel ids start at 1 as they do on real hardware.
func NewWheelSimulator(count, slots int) *WheelSimulator {
	s := &WheelSimulator{now: time.Now, MoveTime: 200 * time.Millisecond}
	for i := 0; i < count; i++ {
		s.wheels = append(s.wheels, &simWheel{
			info: WheelInfo{
				ID:      i + 1,
				Name:    fmt.Sprintf("EFW Simulator %d", i),
				SlotNum: slots,
			},
			target: -1,
			faults: make(map[string]int),
		})
	}
	return s
}

func (s *WheelSimulator) lookup(op string, id int, requireOpen bool) (*simWheel, error) {
	for _, w := range s.wheels {
		if w.info.ID != id {
			continue
		}
		if code, ok := w.faults[op]; ok {
			delete(w.faults, op)
			return nil, WheelError(op, code)
		}
		if requireOpen && !w.opened {
			return nil, WheelError(op, 9)
		}
		return w, nil
	}
	return nil, WheelError(op, 2)
}

// settle finishes a move whose time has passed. Callers hold s.mu.
func (s *WheelSimulator) settle(w *simWheel) bool {
	if w.target < 0 {
		return false
	}
	if s.now().Before(w.moveUntil) {
		return true
	}
	w.position = w.target
	w.target = -1
	return false
}

func (s *WheelSimulator) NumWheels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wheels)
}

func (s *WheelSimulator) WheelID(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.wheels) {
		return 0, WheelError("WheelID", 1)
	}
	return s.wheels[index].info.ID, nil
}

func (s *WheelSimulator) Open(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("Open", id, false)
	if err != nil {
		return err
	}
	w.opened = true
	w.target = -1
	return nil
}

func (s *WheelSimulator) Close(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("Close", id, false)
	if err != nil {
		return err
	}
	w.opened = false
	return nil
}

func (s *WheelSimulator) Info(id int) (WheelInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("Info", id, true)
	if err != nil {
		return WheelInfo{}, err
	}
	return w.info, nil
}

func (s *WheelSimulator) Position(id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("Position", id, true)
	if err != nil {
		return 0, err
	}
	if s.settle(w) {
		return -1, nil
	}
	return w.position, nil
}

func (s *WheelSimulator) SetPosition(id, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("SetPosition", id, true)
	if err != nil {
		return err
	}
	if s.settle(w) {
		return WheelError("SetPosition", 5)
	}
	if slot < 0 || slot >= w.info.SlotNum {
		return WheelError("SetPosition", 3)
	}
	if slot == w.position {
		return nil
	}
	w.target = slot
	w.moveUntil = s.now().Add(s.MoveTime)
	return nil
}

func (s *WheelSimulator) Direction(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("Direction", id, true)
	if err != nil {
		return false, err
	}
	return w.unidirectional, nil
}

func (s *WheelSimulator) SetDirection(id int, unidirectional bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("SetDirection", id, true)
	if err != nil {
		return err
	}
	w.unidirectional = unidirectional
	return nil
}

func (s *WheelSimulator) Calibrate(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup("Calibrate", id, true)
	if err != nil {
		return err
	}
	if s.settle(w) {
		return WheelError("Calibrate", 5)
	}
	w.target = 0
	w.moveUntil = s.now().Add(2 * s.MoveTime)
	return nil
}

// InjectFault makes the next call of op on wheel id fail with code.
func (s *WheelSimulator) InjectFault(id int, op string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wheels {
		if w.info.ID == id {
			w.faults[op] = code
		}
	}
}
