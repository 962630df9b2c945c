package rtc

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// withVideoBandwidth rewrites raw so every video section carries b=AS:kbps.
func withVideoBandwidth(raw string, kbps int) (string, error) {
	if kbps <= 0 {
		return raw, nil
	}
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return "", fmt.Errorf("parse answer: %w", err)
	}
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media != "video" {
			continue
		}
		bw := md.Bandwidth[:0]
		for _, b := range md.Bandwidth {
			if b.Type != "AS" {
				bw = append(bw, b)
			}
		}
		md.Bandwidth = append(bw, sdp.Bandwidth{Type: "AS", Bandwidth: uint64(kbps)})
	}
	out, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode answer: %w", err)
	}
	return string(out), nil
}
