package tts

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PCM16 is little-endian signed 16-bit mono audio.
type PCM16 struct {
	SampleRate int
	PCM        []byte
}

// readWAVPCM16 extracts the data chunk of a PCM16 WAV. Stereo input is
// averaged down to mono.
func readWAVPCM16(r io.Reader) (PCM16, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return PCM16{}, err
	}
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return PCM16{}, fmt.Errorf("not a WAV")
	}
	off := 12
	var dataOff, dataLen int
	var channels uint16
	var rate uint32
	for off+8 <= len(b) {
		cid := string(b[off : off+4])
		csz := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		if cid == "fmt " {
			if csz < 16 || off+csz > len(b) {
				return PCM16{}, fmt.Errorf("bad fmt chunk")
			}
			tag := binary.LittleEndian.Uint16(b[off:])
			channels = binary.LittleEndian.Uint16(b[off+2:])
			rate = binary.LittleEndian.Uint32(b[off+4:])
			bits := binary.LittleEndian.Uint16(b[off+14:])
			if tag != 1 || bits != 16 || (channels != 1 && channels != 2) {
				return PCM16{}, fmt.Errorf("unsupported WAV format")
			}
			off += csz
		} else if cid == "data" {
			dataOff, dataLen = off, csz
			break
		} else {
			off += csz
		}
	}
	if rate == 0 {
		return PCM16{}, fmt.Errorf("missing fmt chunk")
	}
	if dataOff <= 0 || dataOff+dataLen > len(b) {
		return PCM16{}, fmt.Errorf("no data chunk")
	}
	raw := b[dataOff : dataOff+dataLen]
	if channels == 2 {
		out := make([]byte, len(raw)/2)
		for i := 0; i+3 < len(raw); i += 4 {
			a := int32(int16(binary.LittleEndian.Uint16(raw[i:])))
			c := int32(int16(binary.LittleEndian.Uint16(raw[i+2:])))
			binary.LittleEndian.PutUint16(out[i/2:], uint16(int16((a+c)/2)))
		}
		raw = out
	}
	return PCM16{SampleRate: int(rate), PCM: raw}, nil
}
