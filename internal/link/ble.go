package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/ayusman/facecam/internal/log"
)

// BLEConfig selects the peripheral and the characteristic positions are
// written to.
type BLEConfig struct {
	DeviceName     string
	ServiceUUID    string
	Characteristic string
	ConnectTimeout time.Duration
	RetryDelay     time.Duration
}

// BLE is a Link over a Bluetooth LE write-without-response characteristic.
type BLE struct {
	cfg      BLEConfig
	adapter  *bluetooth.Adapter
	service  bluetooth.UUID
	charUUID bluetooth.UUID

	mu     sync.Mutex
	device peripheral
	char   characteristic
	ready  atomic.Bool
}

// peripheral and characteristic are the parts of a connected device the
// link uses.
type peripheral interface {
	Disconnect() error
}

type characteristic interface {
	WriteWithoutResponse(p []byte) (int, error)
}

// NewBLE validates cfg and returns an unconnected link.
func NewBLE(cfg BLEConfig) (*BLE, error) {
	if cfg.DeviceName == "" {
		return nil, errors.New("ble: device name is required")
	}
	service, err := bluetooth.ParseUUID(cfg.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: service uuid: %w", err)
	}
	char, err := bluetooth.ParseUUID(cfg.Characteristic)
	if err != nil {
		return nil, fmt.Errorf("ble: characteristic uuid: %w", err)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	return &BLE{
		cfg:      cfg,
		adapter:  bluetooth.DefaultAdapter,
		service:  service,
		charUUID: char,
	}, nil
}

// Run keeps the link connected until ctx is done.
func (b *BLE) Run(ctx context.Context) {
	if err := b.adapter.Enable(); err != nil {
		log.Error("bluetooth adapter unavailable", "error", err)
		return
	}

	for {
		if !b.IsReady() {
			if err := b.Connect(ctx); err != nil {
				log.Warn("peripheral connect failed", "device", b.cfg.DeviceName, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			b.Close()
			return
		case <-time.After(b.cfg.RetryDelay):
		}
	}
}

// Connect scans for the configured device name and opens the
// position characteristic.
func (b *BLE) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ConnectTimeout)
	defer cancel()

	if err := b.disconnect(); err != nil {
		log.Debug("stale peripheral disconnect", "error", err)
	}

	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.LocalName() != b.cfg.DeviceName {
				return
			}
			select {
			case found <- result:
			default:
			}
			adapter.StopScan()
		})
	}()

	result, err := awaitScan(ctx, found, scanErr)
	if err != nil {
		if ctx.Err() != nil {
			b.adapter.StopScan()
			return fmt.Errorf("scan for %q: %w", b.cfg.DeviceName, err)
		}
		return fmt.Errorf("scan: %w", err)
	}

	device, err := b.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", result.Address.String(), err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{b.service})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return fmt.Errorf("discover service %s: %v", b.service.String(), err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{b.charUUID})
	if err != nil || len(chars) == 0 {
		device.Disconnect()
		return fmt.Errorf("discover characteristic %s: %v", b.charUUID.String(), err)
	}

	b.mu.Lock()
	b.device = &device
	b.char = &chars[0]
	b.mu.Unlock()
	b.ready.Store(true)

	log.Info("peripheral connected", "device", b.cfg.DeviceName, "address", result.Address.String())
	return nil
}

// awaitScan waits for the scan callback to report a match. Scan returns
// nil once the callback stops it, possibly before found is read, so a clean
// scan exit still checks found.
func awaitScan[T any](ctx context.Context, found <-chan T, scanErr <-chan error) (T, error) {
	var zero T
	select {
	case result := <-found:
		return result, nil
	case err := <-scanErr:
		if err != nil {
			return zero, err
		}
		select {
		case result := <-found:
			return result, nil
		default:
			return zero, errors.New("scan stopped")
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// IsReady reports whether the characteristic is open.
func (b *BLE) IsReady() bool {
	return b.ready.Load()
}

// SendPosition writes the position without waiting for a response.
// A failed write marks the link not ready so Run reconnects.
func (b *BLE) SendPosition(x, y float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready.Load() || b.char == nil {
		return ErrNotReady
	}
	if _, err := b.char.WriteWithoutResponse(Payload(x, y)); err != nil {
		b.ready.Store(false)
		return fmt.Errorf("ble write: %w", err)
	}
	return nil
}

// Close disconnects from the peripheral.
func (b *BLE) Close() error {
	return b.disconnect()
}

// disconnect drops the current device, if any, and marks the link not ready.
func (b *BLE) disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ready.Store(false)
	b.char = nil
	if b.device == nil {
		return nil
	}
	err := b.device.Disconnect()
	b.device = nil
	return err
}
