// Package audio owns the process-wide audio output. It decodes speech
// audio into float buffers and plays at most one buffer at a time through
// oto/v3, with pause and resume implemented by suspending the output clock.
package audio
