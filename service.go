package procmem

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/viant/afs"
	"github.com/viant/procmem/address"
	"github.com/viant/procmem/heap"
	"github.com/viant/procmem/service/dao"
	sfs "github.com/viant/procmem/service/dao/snapshot/fs"
	"github.com/viant/procmem/service/registry"
	"github.com/viant/procmem/shed"
	"github.com/viant/procmem/space"
	"github.com/viant/procmem/tracing"
)

// Service stores JSON-serializable values under string keys in process
// memory. Composite operations on one pid are serialised.
type Service struct {
	config      *Config
	registry    registry.Registry
	snapshots   dao.Service[string, space.Snapshot]
	snapshotURL string
	fs          afs.Service
	codec       *address.Codec
	logger      *slog.Logger
	locks       sync.Map
	initErr     error
}

// New creates a memory service
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(ret)
	}
	if ret.initErr != nil {
		return nil, errors.Wrap(ret.initErr, "failed to initialise tracing")
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if err := ret.ensureBaseSetup(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) ensureBaseSetup() error {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.codec = address.New(address.WithLenient(s.config.Memory.LenientAddresses), address.WithLogger(s.logger))
	if s.registry == nil {
		s.registry = registry.New(registry.WithSpaceOptions(
			space.WithHeapOptions(heap.WithCodec(s.codec), heap.WithLogger(s.logger)),
			space.WithShedOptions(shed.WithLogger(s.logger)),
		))
	}
	cfgTracing := s.config.Tracing
	if cfgTracing.Enabled {
		if err := tracing.Init(cfgTracing.ServiceName, cfgTracing.ServiceVersion, cfgTracing.OutputFile); err != nil {
			return errors.Wrap(err, "failed to initialise tracing")
		}
	}
	if s.snapshotURL == "" {
		s.snapshotURL = s.config.Snapshot.URL
	}
	if s.snapshots == nil && s.snapshotURL != "" {
		if s.fs == nil {
			s.fs = afs.New()
		}
		snapshots, err := sfs.New(s.fs, s.snapshotURL, s.logger)
		if err != nil {
			return errors.Wrapf(err, "failed to create snapshot store at %s", s.snapshotURL)
		}
		s.snapshots = snapshots
	}
	return nil
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// Registry returns the process-memory registry
func (s *Service) Registry() registry.Registry {
	return s.registry
}

// EnsureMemory returns the default heap and shed of pid, allocating them
// with the supplied sizes when missing. Existing memory is returned as is.
func (s *Service) EnsureMemory(ctx context.Context, pid interface{}, heapSize, shedSize int) (h *heap.Heap, sh *shed.Shed, err error) {
	ctx, span := s.startSpan(ctx, "procmem.EnsureMemory", pid, "")
	defer func() { tracing.EndSpan(span, err) }()
	return s.ensureMemory(ctx, pid, heapSize, shedSize)
}

func (s *Service) ensureMemory(ctx context.Context, pid interface{}, heapSize, shedSize int) (*heap.Heap, *shed.Shed, error) {
	memory := s.config.Memory
	h, sh, err := s.registry.Lookup(ctx, pid, memory.HeapID, memory.ShedID)
	if err == nil {
		return h, sh, nil
	}
	if !errors.Is(err, registry.ErrMemoryNotAllocated) {
		return nil, nil, err
	}
	if _, err = s.registry.AllocateMemory(ctx, pid, heapSize, shedSize, memory.HeapID, memory.ShedID); err != nil {
		return nil, nil, err
	}
	return s.registry.Lookup(ctx, pid, memory.HeapID, memory.ShedID)
}

// lookup returns the default memory of pid; ok is false when none was
// allocated.
func (s *Service) lookup(ctx context.Context, pid interface{}) (*heap.Heap, *shed.Shed, bool, error) {
	memory := s.config.Memory
	h, sh, err := s.registry.Lookup(ctx, pid, memory.HeapID, memory.ShedID)
	if err != nil {
		if errors.Is(err, registry.ErrMemoryNotAllocated) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	return h, sh, true, nil
}

// StoreData encodes data as JSON and writes it into the heap of pid, one
// character per cell followed by a terminator cell, linking the span
// address under key. A previous value of key is released once the new one
// is in place. It returns the span address.
func (s *Service) StoreData(ctx context.Context, pid interface{}, key string, data interface{}) (addr string, err error) {
	ctx, span := s.startSpan(ctx, "procmem.StoreData", pid, key)
	defer func() { tracing.EndSpan(span, err) }()
	unlock := s.lock(pid)
	defer unlock()
	return s.storeData(ctx, pid, key, data)
}

func (s *Service) storeData(ctx context.Context, pid interface{}, key string, data interface{}) (string, error) {
	text, err := encode(data)
	if err != nil {
		s.logger.Warn("memory store rejected", "pid", address.ID(pid), "key", key, "error", err)
		return "", err
	}
	h, sh, err := s.ensureMemory(ctx, pid, s.config.Memory.HeapSize, s.config.Memory.ShedSize)
	if err != nil {
		return "", err
	}
	addr, err := s.write(h, text)
	if err != nil {
		s.logger.Warn("memory store failed", "pid", h.PID(), "key", key, "length", utf8.RuneCountInString(text), "error", err)
		return "", errors.Wrapf(err, "failed to store %s for pid %s", key, h.PID())
	}
	previous, replaced := sh.ReadResourceLink(key)
	sh.WriteResourceLink(key, addr)
	if replaced {
		s.release(h, previous)
	}
	return addr, nil
}

// write allocates len(text)+1 cells, retrying once after an explicit expand.
func (s *Service) write(h *heap.Heap, text string) (string, error) {
	runes := []rune(text)
	count := len(runes) + 1
	addr, ok := h.Alloc(count, s.config.Memory.AutoExpand)
	if !ok {
		h.Expand(max(2*count, h.Size()/2))
		if addr, ok = h.Alloc(count, false); !ok {
			return "", ErrAllocationFailed
		}
	}
	base, err := address.Parse(addr)
	if err != nil {
		return "", err
	}
	for i, r := range runes {
		h.WriteData(base+i, string(r))
	}
	h.WriteData(base+len(runes), heap.Terminator)
	return addr, nil
}

// release frees the characters stored at addr and the terminator after them.
func (s *Service) release(h *heap.Heap, addr interface{}) bool {
	text, ok := h.ReadString(addr, 0)
	if !ok {
		return false
	}
	base, err := s.codec.Index(addr)
	if err != nil {
		return false
	}
	count := utf8.RuneCountInString(text)
	if cell, ok := h.ReadData(base + count); ok && cell.IsTerminator() {
		count++
	}
	if count == 0 {
		return h.Free(base)
	}
	return h.Free(base, count)
}

// LoadData decodes the value stored under key. It returns nil without an
// error when pid has no memory, key is absent or the span holds no text.
func (s *Service) LoadData(ctx context.Context, pid interface{}, key string) (value interface{}, err error) {
	ctx, span := s.startSpan(ctx, "procmem.LoadData", pid, key)
	defer func() { tracing.EndSpan(span, err) }()
	_, err = s.loadInto(ctx, pid, key, &value)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// LoadInto decodes the value stored under key into target, reporting
// whether a value was found.
func (s *Service) LoadInto(ctx context.Context, pid interface{}, key string, target interface{}) (found bool, err error) {
	ctx, span := s.startSpan(ctx, "procmem.LoadInto", pid, key)
	defer func() { tracing.EndSpan(span, err) }()
	return s.loadInto(ctx, pid, key, target)
}

func (s *Service) loadInto(ctx context.Context, pid interface{}, key string, target interface{}) (bool, error) {
	text, ok, err := s.loadText(ctx, pid, key)
	if err != nil || !ok {
		return false, err
	}
	if err = json.Unmarshal([]byte(text), target); err != nil {
		return false, errors.Wrapf(ErrSerializationFailed, "failed to decode %s for pid %s: %v", key, address.ID(pid), err)
	}
	return true, nil
}

func (s *Service) loadText(ctx context.Context, pid interface{}, key string) (string, bool, error) {
	unlock := s.lock(pid)
	defer unlock()
	h, sh, ok, err := s.lookup(ctx, pid)
	if err != nil || !ok {
		return "", false, err
	}
	addr, ok := sh.ReadResourceLink(key)
	if !ok {
		return "", false, nil
	}
	text, ok := h.ReadString(addr, 0)
	if !ok || text == "" {
		return "", false, nil
	}
	return text, true, nil
}

// UpdateData releases the current value of key, then stores data. If the
// store fails the key is left unlinked.
func (s *Service) UpdateData(ctx context.Context, pid interface{}, key string, data interface{}) (addr string, err error) {
	ctx, span := s.startSpan(ctx, "procmem.UpdateData", pid, key)
	defer func() { tracing.EndSpan(span, err) }()
	unlock := s.lock(pid)
	defer unlock()
	if err = s.deleteData(ctx, pid, key); err != nil {
		return "", err
	}
	return s.storeData(ctx, pid, key, data)
}

// DeleteData releases the value of key and removes its link. Deleting an
// absent key succeeds.
func (s *Service) DeleteData(ctx context.Context, pid interface{}, key string) (err error) {
	ctx, span := s.startSpan(ctx, "procmem.DeleteData", pid, key)
	defer func() { tracing.EndSpan(span, err) }()
	unlock := s.lock(pid)
	defer unlock()
	return s.deleteData(ctx, pid, key)
}

func (s *Service) deleteData(ctx context.Context, pid interface{}, key string) error {
	h, sh, ok, err := s.lookup(ctx, pid)
	if err != nil || !ok {
		return err
	}
	addr, ok := sh.ReadResourceLink(key)
	if !ok {
		return nil
	}
	if !s.release(h, addr) {
		s.logger.Warn("memory release skipped", "pid", h.PID(), "key", key, "addr", addr)
	}
	sh.DeleteResourceLink(key)
	return nil
}

// StoreString stores a string value
func (s *Service) StoreString(ctx context.Context, pid interface{}, key string, value string) (string, error) {
	return s.StoreData(ctx, pid, key, value)
}

// LoadString loads a string value; "" when absent.
func (s *Service) LoadString(ctx context.Context, pid interface{}, key string) (string, error) {
	var ret string
	if _, err := s.LoadInto(ctx, pid, key, &ret); err != nil {
		return "", err
	}
	return ret, nil
}

// StoreArray stores a slice or array value
func (s *Service) StoreArray(ctx context.Context, pid interface{}, key string, value interface{}) (string, error) {
	if !hasKind(value, reflect.Slice, reflect.Array) {
		return "", errors.Wrapf(ErrSerializationFailed, "%s: expected array, got %T", key, value)
	}
	return s.StoreData(ctx, pid, key, value)
}

// LoadArray loads an array value; nil when absent.
func (s *Service) LoadArray(ctx context.Context, pid interface{}, key string) ([]interface{}, error) {
	var ret []interface{}
	if _, err := s.LoadInto(ctx, pid, key, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// StoreObject stores a map or struct value
func (s *Service) StoreObject(ctx context.Context, pid interface{}, key string, value interface{}) (string, error) {
	if !hasKind(value, reflect.Map, reflect.Struct) {
		return "", errors.Wrapf(ErrSerializationFailed, "%s: expected object, got %T", key, value)
	}
	return s.StoreData(ctx, pid, key, value)
}

// LoadObject loads an object value; nil when absent.
func (s *Service) LoadObject(ctx context.Context, pid interface{}, key string) (map[string]interface{}, error) {
	var ret map[string]interface{}
	if _, err := s.LoadInto(ctx, pid, key, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Keys lists the keys linked in the default shed of pid
func (s *Service) Keys(ctx context.Context, pid interface{}) (keys []string, err error) {
	ctx, span := s.startSpan(ctx, "procmem.Keys", pid, "")
	defer func() { tracing.EndSpan(span, err) }()
	unlock := s.lock(pid)
	defer unlock()
	_, sh, ok, err := s.lookup(ctx, pid)
	if err != nil || !ok {
		return nil, err
	}
	return sh.ResourceLinks(), nil
}

// FreeMemory drops every heap and shed of pid, as on process exit.
func (s *Service) FreeMemory(ctx context.Context, pid interface{}) (err error) {
	ctx, span := s.startSpan(ctx, "procmem.FreeMemory", pid, "")
	defer func() { tracing.EndSpan(span, err) }()
	unlock := s.lock(pid)
	defer unlock()
	return s.registry.Release(ctx, pid)
}

// Snapshot captures the memory of pid and saves it to the snapshot store.
func (s *Service) Snapshot(ctx context.Context, pid interface{}) (snapshot *space.Snapshot, err error) {
	ctx, span := s.startSpan(ctx, "procmem.Snapshot", pid, "")
	defer func() { tracing.EndSpan(span, err) }()
	if s.snapshots == nil {
		return nil, ErrSnapshotDisabled
	}
	unlock := s.lock(pid)
	defer unlock()
	aSpace, err := s.registry.Space(ctx, pid)
	if err != nil {
		return nil, err
	}
	if snapshot, err = aSpace.Snapshot(ctx); err != nil {
		return nil, err
	}
	if err = s.snapshots.Save(ctx, snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to save snapshot of pid %s", aSpace.PID)
	}
	return snapshot, nil
}

// Restore loads a snapshot and writes it back into the memory of its pid,
// allocating the process memory when needed.
func (s *Service) Restore(ctx context.Context, snapshotID string) (snapshot *space.Snapshot, err error) {
	ctx, span := tracing.StartSpan(ctx, "procmem.Restore", map[string]string{"snapshot": snapshotID})
	defer func() { tracing.EndSpan(span, err) }()
	if s.snapshots == nil {
		return nil, ErrSnapshotDisabled
	}
	if snapshot, err = s.snapshots.Load(ctx, snapshotID); err != nil {
		return nil, err
	}
	unlock := s.lock(snapshot.PID)
	defer unlock()
	memory := s.config.Memory
	aSpace, err := s.registry.AllocateMemory(ctx, snapshot.PID, memory.HeapSize, memory.ShedSize, memory.HeapID, memory.ShedID)
	if err != nil {
		return nil, err
	}
	if err = aSpace.Restore(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// lock acquires the mutex of pid. Mutexes live as long as the service so
// that waiters and newcomers always share one.
func (s *Service) lock(pid interface{}) func() {
	value, _ := s.locks.LoadOrStore(address.ID(pid), &sync.Mutex{})
	mux := value.(*sync.Mutex)
	mux.Lock()
	return mux.Unlock
}

func (s *Service) startSpan(ctx context.Context, name string, pid interface{}, key string) (context.Context, *tracing.Span) {
	attrs := map[string]string{"pid": address.ID(pid)}
	if key != "" {
		attrs["key"] = key
	}
	return tracing.StartSpan(ctx, name, attrs)
}

// encode returns the JSON text of data without HTML escaping.
func encode(data interface{}) (string, error) {
	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		return "", errors.Wrapf(ErrSerializationFailed, "%T: %v", data, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func hasKind(value interface{}, kinds ...reflect.Kind) bool {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	for _, kind := range kinds {
		if v.Kind() == kind {
			return true
		}
	}
	return false
}
