package loadgen

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"

	"github.com/google/uuid"
)

const (
	sampleRate  = 8000
	minDuration = 3
	maxDuration = 45
)

var pages = []string{
	"https://app.example.com/dashboard",
	"https://app.example.com/reports/export",
	"https://app.example.com/settings/billing",
	"https://app.example.com/onboarding",
}

func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generate builds n recordings, each with its own session.
func generate(n int) []submission {
	out := make([]submission, n)
	for i := range out {
		d := minDuration + randomInt(maxDuration-minDuration+1)
		out[i] = submission{
			SessionID: uuid.NewString(),
			PageURL:   pages[randomInt(len(pages))],
			Duration:  d,
			Audio:     silence(d),
		}
	}
	return out
}

// silence returns a mono 8-bit PCM WAV of the given length in seconds.
func silence(seconds int) []byte {
	samples := seconds * sampleRate
	buf := make([]byte, 44+samples)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+samples))
	copy(buf[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:], sampleRate)
	binary.LittleEndian.PutUint16(buf[32:], 1)
	binary.LittleEndian.PutUint16(buf[34:], 8)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(samples))
	for i := 44; i < len(buf); i++ {
		buf[i] = 0x80
	}
	return buf
}
