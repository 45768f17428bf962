// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package audio

// MonoChannels is the fixed coefficient count of a mono SendMatrix:
// one scalar per output channel, up to 7.1.
const MonoChannels = 8

// StereoChannels is the fixed coefficient count of one input channel's
// row in a stereo SendMatrix.
const StereoChannels = 8

// SendMatrix holds a voice's per-destination-channel mix coefficients
// for one submix, plus in-flight slew state. Mono voices use row 0
// only; stereo voices use both rows. Updates made through SetMono/
// SetStereo either take effect at the next pump (slewFrames == 0) or
// interpolate linearly from the current coefficients to the target
// over slewFrames output frames (Property P4).
type SendMatrix struct {
	current [2][MonoChannels]float32
	target  [2][MonoChannels]float32
	step    [2][MonoChannels]float32
	remain  int
	stereo  bool
}

// DefaultMonoMatrix returns the identity mono-to-stereo send: full
// level to the front-left and front-right channels, silence elsewhere.
func DefaultMonoMatrix() SendMatrix {
	var m SendMatrix
	m.current[0][FrontLeft] = 1
	m.current[0][FrontRight] = 1
	return m
}

// DefaultStereoMatrix returns the identity stereo send: left input to
// front-left, right input to front-right.
func DefaultStereoMatrix() SendMatrix {
	var m SendMatrix
	m.stereo = true
	m.current[0][FrontLeft] = 1
	m.current[1][FrontRight] = 1
	return m
}

// SetMono latches a new coefficient row for a mono voice's send. If
// slewFrames is 0 the coefficients take effect at the next pump;
// otherwise they interpolate linearly over slewFrames output frames.
func (m *SendMatrix) SetMono(coeffs [MonoChannels]float32, slewFrames int) {
	m.set(0, coeffs, slewFrames)
}

// SetStereo latches new coefficient rows for a stereo voice's left and
// right input channels.
func (m *SendMatrix) SetStereo(left, right [StereoChannels]float32, slewFrames int) {
	m.stereo = true
	m.set(0, left, slewFrames)
	m.set(1, right, slewFrames)
}

func (m *SendMatrix) set(row int, coeffs [MonoChannels]float32, slewFrames int) {
	if slewFrames <= 0 {
		m.current[row] = coeffs
		m.target[row] = coeffs
		m.step[row] = [MonoChannels]float32{}
		m.remain = 0
		return
	}
	m.target[row] = coeffs
	for c := 0; c < MonoChannels; c++ {
		m.step[row][c] = (coeffs[c] - m.current[row][c]) / float32(slewFrames)
	}
	if slewFrames > m.remain {
		m.remain = slewFrames
	}
}

// Coeffs returns the current per-frame coefficients for the given
// input row (0 for mono, 0/1 for stereo left/right). It does not
// change the slew state; Advance does.
func (m *SendMatrix) Coeffs(row int) [MonoChannels]float32 {
	c := m.current[row]
	return c
}

// Advance steps every in-flight slew by one output frame. The engine
// calls this once per output frame per active send, after reading
// Coeffs for that frame.
func (m *SendMatrix) Advance() {
	if m.remain <= 0 {
		return
	}
	rows := 1
	if m.stereo {
		rows = 2
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < MonoChannels; c++ {
			if m.step[r][c] == 0 {
				continue
			}
			m.current[r][c] += m.step[r][c]
		}
	}
	m.remain--
	if m.remain == 0 {
		m.current = m.target
	}
}

// Slewing reports whether a coefficient change is still interpolating.
func (m *SendMatrix) Slewing() bool { return m.remain > 0 }
