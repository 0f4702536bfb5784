package fields

// Checksum16 computes the RFC 1071 one's-complement 16-bit checksum
// of b. An odd trailing byte is padded with zero, carries above bit 16
// are folded back repeatedly, and an all-zero result maps to 0xffff.
func Checksum16(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum > 0xFFFF {
		sum = sum&0xFFFF + sum>>16
	}
	cks := ^uint16(sum)
	if cks == 0 {
		return 0xFFFF
	}
	return cks
}
