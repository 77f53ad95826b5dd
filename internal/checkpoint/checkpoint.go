package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// StateDicter is anything whose state can be exported and restored as a map
// of named raw tensors. Models and optimizers implement it.
type StateDicter interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Checkpoint is a snapshot of training state: model parameters, optimizer
// state, and progress metadata. Optimizer may be nil (manual update mode).
//
// Example:
//
//	ckpt := &checkpoint.Checkpoint{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Loss:      0.123,
//	}
//	err := ckpt.Save("model.lgrd")
type Checkpoint struct {
	Model     StateDicter
	Optimizer StateDicter
	Epoch     int
	Step      int64
	Loss      float64
}

// optimizerPrefix separates optimizer records from model records in the
// combined state dict.
const optimizerPrefix = "optimizer."

// Save writes the checkpoint to path.
//
// Optimizer state records are prefixed with "optimizer." so they can be
// separated from model parameters on load.
func (c *Checkpoint) Save(path string) error {
	state := make(map[string]*tensor.RawTensor)

	for name, raw := range c.Model.StateDict() {
		state[name] = raw
	}
	if c.Optimizer != nil {
		for name, raw := range c.Optimizer.StateDict() {
			state[optimizerPrefix+name] = raw
		}
	}

	data, err := encode(state, c.Epoch, c.Step, c.Loss)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint from path and restores model and optimizer state.
//
// The model (and optimizer, if set) must be pre-constructed with the same
// architecture and configuration as when the checkpoint was saved. Epoch,
// Step, and Loss are filled in from the file.
func (c *Checkpoint) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	state, epoch, step, loss, err := decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	modelState := make(map[string]*tensor.RawTensor)
	optimizerState := make(map[string]*tensor.RawTensor)
	for name, raw := range state {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerState[rest] = raw
		} else {
			modelState[name] = raw
		}
	}

	if err := c.Model.LoadStateDict(modelState); err != nil {
		return fmt.Errorf("failed to load model state: %w", err)
	}
	if c.Optimizer != nil && len(optimizerState) > 0 {
		if err := c.Optimizer.LoadStateDict(optimizerState); err != nil {
			return fmt.Errorf("failed to load optimizer state: %w", err)
		}
	}

	c.Epoch = epoch
	c.Step = step
	c.Loss = loss
	return nil
}

// encode serializes a state dict plus metadata into the .lgrd byte format.
func encode(state map[string]*tensor.RawTensor, epoch int, step int64, loss float64) ([]byte, error) {
	if len(state) > MaxRecords {
		return nil, ErrTooManyTensors
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString(MagicBytes)

	writeU32(&buf, FormatVersion)
	writeI64(&buf, int64(epoch))
	writeI64(&buf, step)
	writeU64(&buf, math.Float64bits(loss))
	writeU32(&buf, uint32(len(names)))

	for _, name := range names {
		if len(name) > MaxTensorNameLen {
			return nil, fmt.Errorf("%w: %q", ErrTensorNameTooLong, name)
		}
		raw := state[name]

		db, ok := dtypeByte(raw.DType())
		if !ok {
			return nil, fmt.Errorf("tensor %q: unsupported dtype %s", name, raw.DType())
		}

		writeU32(&buf, uint32(len(name)))
		buf.WriteString(name)
		buf.WriteByte(db)

		shape := raw.Shape()
		writeU32(&buf, uint32(len(shape)))
		for _, dim := range shape {
			writeI64(&buf, int64(dim))
		}

		data := raw.Data()
		writeU64(&buf, uint64(len(data)))
		buf.Write(data)
	}

	checksum := sha256.Sum256(buf.Bytes())
	buf.Write(checksum[:])

	return buf.Bytes(), nil
}

// decode parses the .lgrd byte format back into a state dict and metadata.
// The checksum trailer is validated before any record is trusted.
func decode(data []byte) (map[string]*tensor.RawTensor, int, int64, float64, error) {
	if len(data) < len(MagicBytes)+4+ChecksumSize {
		return nil, 0, 0, 0, ErrTruncated
	}

	body := data[:len(data)-ChecksumSize]
	var stored [ChecksumSize]byte
	copy(stored[:], data[len(data)-ChecksumSize:])
	if sha256.Sum256(body) != stored {
		return nil, 0, 0, 0, ErrChecksumMismatch
	}

	r := &reader{data: body}

	if string(r.bytes(len(MagicBytes))) != MagicBytes {
		return nil, 0, 0, 0, ErrInvalidMagic
	}
	if v := r.u32(); v != FormatVersion {
		return nil, 0, 0, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	epoch := int(r.i64())
	step := r.i64()
	loss := math.Float64frombits(r.u64())

	numRecords := r.u32()
	if numRecords > MaxRecords {
		return nil, 0, 0, 0, ErrTooManyTensors
	}

	state := make(map[string]*tensor.RawTensor, numRecords)
	for i := uint32(0); i < numRecords; i++ {
		nameLen := r.u32()
		if nameLen > MaxTensorNameLen {
			return nil, 0, 0, 0, ErrTensorNameTooLong
		}
		name := string(r.bytes(int(nameLen)))

		dt, ok := byteDtype(r.byte())
		if !ok && r.err == nil {
			return nil, 0, 0, 0, fmt.Errorf("tensor %q: unknown dtype byte", name)
		}

		ndim := r.u32()
		shape := make(tensor.Shape, ndim)
		for d := range shape {
			shape[d] = int(r.i64())
		}

		dataLen := r.u64()
		payload := r.bytes(int(dataLen))

		if r.err != nil {
			return nil, 0, 0, 0, r.err
		}

		raw, err := tensor.NewRaw(shape, dt, tensor.CPU)
		if err != nil {
			return nil, 0, 0, 0, fmt.Errorf("tensor %q: %w", name, err)
		}
		if len(raw.Data()) != len(payload) {
			return nil, 0, 0, 0, fmt.Errorf("tensor %q: data length %d does not match shape %v", name, len(payload), shape)
		}
		copy(raw.Data(), payload)

		state[name] = raw
	}

	if r.err != nil {
		return nil, 0, 0, 0, r.err
	}
	return state, epoch, step, loss, nil
}

// reader is a bounds-checked cursor over the file body. After any read past
// the end, err is set and all further reads return zeros.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.pos+n > len(r.data) {
		if r.err == nil {
			r.err = ErrTruncated
		}
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) byte() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 {
	return int64(r.u64())
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	writeU64(buf, uint64(v))
}
