package shell

// consumeEscape reports how many bytes at the head of b form a
// complete VT100 escape sequence. ok is false when the sequence is
// still arriving and the caller should buffer and retry; the line
// editor ignores these sequences either way.
func consumeEscape(b []byte) (n int, ok bool) {
	if len(b) == 0 || b[0] != 0x1b {
		return 0, true
	}
	if len(b) < 2 {
		return 0, false
	}
	if b[1] != '[' {
		return 2, true
	}
	// CSI: ESC [ params... final, final in 0x40..0x7e.
	for i := 2; i < len(b); i++ {
		if b[i] >= 0x40 && b[i] <= 0x7e {
			return i + 1, true
		}
	}
	return 0, false
}
