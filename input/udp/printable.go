package udp

// IsPrintable reports whether b is a printable ASCII character: space through
// tilde (0x20..0x7E).
func IsPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

// Printable appends the printable bytes of src to dst in their original order
// and returns the extended slice. Every other byte is dropped without a
// placeholder. With cap(dst) >= len(src) no allocation happens.
func Printable(dst, src []byte) []byte {
	for _, b := range src {
		if IsPrintable(b) {
			dst = append(dst, b)
		}
	}
	return dst
}
