package audio

import (
	"io"
	"sync"
	"sync/atomic"
)

// MockOutput implements Output without a device. Voices play until
// Finish is called on them.
type MockOutput struct {
	mu     sync.Mutex
	voices []*MockVoice

	suspendCount atomic.Int64
	resumeCount  atomic.Int64
}

// NewMockOutput creates a mock output.
func NewMockOutput() *MockOutput {
	return &MockOutput{}
}

// Factory returns an OutputFactory that hands out m.
func (m *MockOutput) Factory() OutputFactory {
	return func(Config) (Output, error) { return m, nil }
}

func (m *MockOutput) NewVoice(r io.Reader) Voice {
	data, _ := io.ReadAll(r)
	v := &MockVoice{data: data}
	m.mu.Lock()
	m.voices = append(m.voices, v)
	m.mu.Unlock()
	return v
}

func (m *MockOutput) Suspend() error {
	m.suspendCount.Add(1)
	return nil
}

func (m *MockOutput) Resume() error {
	m.resumeCount.Add(1)
	return nil
}

// Voices returns every voice created so far.
func (m *MockOutput) Voices() []*MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockVoice(nil), m.voices...)
}

// Last returns the most recent voice, or nil.
func (m *MockOutput) Last() *MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.voices) == 0 {
		return nil
	}
	return m.voices[len(m.voices)-1]
}

// Suspends returns how many times Suspend was called.
func (m *MockOutput) Suspends() int64 { return m.suspendCount.Load() }

// Resumes returns how many times Resume was called.
func (m *MockOutput) Resumes() int64 { return m.resumeCount.Load() }

// MockVoice implements Voice.
type MockVoice struct {
	mu       sync.Mutex
	data     []byte
	playing  bool
	finished bool
	closed   bool
	volume   float64
}

func (v *MockVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.finished {
		v.playing = true
	}
}

func (v *MockVoice) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = false
}

func (v *MockVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *MockVoice) SetVolume(volume float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.volume = volume
}

func (v *MockVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.playing = false
	return nil
}

// Finish simulates the source draining.
func (v *MockVoice) Finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finished = true
	v.playing = false
}

// Closed reports whether the voice was closed.
func (v *MockVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// Bytes returns the float32 bytes the voice was given.
func (v *MockVoice) Bytes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.data)
}
